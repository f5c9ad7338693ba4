package telegram

import (
	"strings"

	"qissati/internal/domain"
	"qissati/internal/media"
)

// FormatStoryCard renders a story as a plain-text message.
func FormatStoryCard(st domain.Story) string {
	var b strings.Builder
	if st.Status == domain.StatusToday {
		b.WriteString("🌟 قصة اليوم\n")
	}
	b.WriteString("📖 ")
	b.WriteString(st.Title)
	b.WriteString("\n")
	if st.Date != "" {
		b.WriteString("🗓 ")
		b.WriteString(st.Date)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if st.IsVideo() {
		link := st.VideoURL
		if id, ok := media.YouTubeID(st.VideoURL); ok {
			link = media.WatchURL(id)
		}
		if link != "" {
			b.WriteString("🎬 ")
			b.WriteString(link)
			b.WriteString("\n\n")
		}
	}
	if content := strings.TrimSpace(st.Content); content != "" {
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	if question := strings.TrimSpace(st.Question); question != "" {
		b.WriteString("❓ سؤال اليوم: ")
		b.WriteString(question)
	}
	return strings.TrimSpace(b.String())
}

func FormatArchiveLine(st domain.Story) string {
	icon := "📄"
	if st.IsVideo() {
		icon = "🎬"
	}
	if st.Date == "" {
		return icon + " " + st.Title
	}
	return icon + " " + st.Title + " · " + st.Date
}
