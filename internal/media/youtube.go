// Package media builds player and thumbnail links for video stories.
package media

import (
	"net/url"
	"regexp"
)

const youTubeIDLength = 11

var youTubeLink = regexp.MustCompile(`^.*((youtu.be/)|(v/)|(/u/\w/)|(embed/)|(watch\?v=)|(shorts/))([^#&?]*).*`)

// YouTubeID extracts the video id from watch, embed, short and youtu.be links.
func YouTubeID(link string) (string, bool) {
	m := youTubeLink.FindStringSubmatch(link)
	if m == nil || len(m[8]) != youTubeIDLength {
		return "", false
	}
	return m[8], true
}

func EmbedURL(id string) string {
	return "https://www.youtube.com/embed/" + url.PathEscape(id) + "?autoplay=1&rel=0"
}

func ThumbnailURL(id string) string {
	return "https://img.youtube.com/vi/" + url.PathEscape(id) + "/hqdefault.jpg"
}

// WatchURL is the regular page link for id, used where no player can be embedded.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}
