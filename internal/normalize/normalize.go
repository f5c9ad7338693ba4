// Package normalize maps sheet rows with unknown key casing into canonical
// stories and responses. It never drops a row.
package normalize

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"qissati/internal/domain"
)

const dateLayout = "2006-01-02"

// dateLayouts are tried in order for string dates.
var dateLayouts = []string{
	dateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
}

// Normalizer holds the collaborators that make normalization deterministic in tests.
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time used for missing response timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithIDGenerator overrides the generator used for rows without an id.
func WithIDGenerator(gen func() string) Option {
	return func(n *Normalizer) {
		if gen != nil {
			n.newID = gen
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Story maps one row. Status is left empty; Stories assigns it.
func (n *Normalizer) Story(rec domain.RawRecord) domain.Story {
	story := domain.Story{
		ID:       storyFields.id.resolve(rec),
		Date:     resolveDate(rec, storyFields.date),
		Title:    storyFields.title.resolve(rec),
		Type:     resolveType(rec),
		Content:  storyFields.content.resolve(rec),
		Question: storyFields.question.resolve(rec),
	}
	if story.ID == "" {
		story.ID = n.newID()
	}
	if story.Type == domain.StoryVideo {
		story.VideoURL = strings.TrimSpace(storyFields.videoURL.resolve(rec))
	}
	return story
}

// Stories maps all rows, sorts them by date descending and tags the first as Today.
// Undated stories sort last; equal dates keep their source order.
func (n *Normalizer) Stories(recs []domain.RawRecord) []domain.Story {
	out := make([]domain.Story, 0, len(recs))
	for _, rec := range recs {
		out = append(out, n.Story(rec))
	}
	SortByDate(out)
	return out
}

// SortByDate orders stories newest first and recomputes their status.
func SortByDate(stories []domain.Story) {
	sort.SliceStable(stories, func(i, j int) bool {
		a, b := stories[i].Date, stories[j].Date
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		// YYYY-MM-DD compares lexically
		return a > b
	})
	MarkToday(stories)
}

// MarkToday tags the first story as Today and the rest as Archive.
func MarkToday(stories []domain.Story) {
	for i := range stories {
		if i == 0 {
			stories[i].Status = domain.StatusToday
		} else {
			stories[i].Status = domain.StatusArchive
		}
	}
}

// Response maps one response row.
func (n *Normalizer) Response(rec domain.RawRecord) domain.StudentResponse {
	resp := domain.StudentResponse{
		ID:          responseFields.id.resolve(rec),
		Timestamp:   responseFields.timestamp.resolve(rec),
		StoryID:     responseFields.storyID.resolve(rec),
		StoryTitle:  responseFields.storyTitle.resolve(rec),
		StudentName: responseFields.studentName.resolve(rec),
		ClassName:   responseFields.className.resolve(rec),
		Answer:      responseFields.answer.resolve(rec),
	}
	if resp.ID == "" {
		resp.ID = n.newID()
	}
	if resp.Timestamp == "" {
		resp.Timestamp = n.now().UTC().Format(time.RFC3339)
	}
	return resp
}

// Responses maps all rows and reverses them: the last appended row is the newest.
func (n *Normalizer) Responses(recs []domain.RawRecord) []domain.StudentResponse {
	out := make([]domain.StudentResponse, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = n.Response(rec)
	}
	return out
}

// FormatDate parses a raw date and re-emits it as UTC YYYY-MM-DD, or "" when unparseable.
func FormatDate(v any) string {
	switch t := v.(type) {
	case float64:
		return time.UnixMilli(int64(t)).UTC().Format(dateLayout)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return ""
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC().Format(dateLayout)
			}
		}
	}
	return ""
}

func resolveDate(rec domain.RawRecord, f field) string {
	for _, key := range f.keys {
		v, ok := rec[key]
		if !ok || scalar(v) == "" {
			continue
		}
		return FormatDate(v)
	}
	return ""
}
