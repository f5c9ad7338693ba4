package normalize

import (
	"strconv"
	"strings"

	"qissati/internal/domain"
)

// field lists the candidate keys for one canonical field, in priority order.
// New sheet aliases are added here, not in the mapping code.
type field struct {
	keys     []string
	fallback string
}

var storyFields = struct {
	id, date, title, typ, content, videoURL, question field
}{
	id:       field{keys: []string{"id", "Id", "ID"}},
	date:     field{keys: []string{"date", "Date", "التاريخ"}},
	title:    field{keys: []string{"title", "Title", "العنوان"}, fallback: "بدون عنوان"},
	typ:      field{keys: []string{"type", "Type", "النوع"}},
	content:  field{keys: []string{"content", "Content", "المحتوى"}},
	videoURL: field{keys: []string{"videoUrl", "VideoUrl", "VideoURL", "videoURL"}},
	question: field{keys: []string{"question", "Question", "السؤال"}},
}

var responseFields = struct {
	id, timestamp, storyID, storyTitle, studentName, className, answer field
}{
	id:          field{keys: []string{"id", "Id", "ID"}},
	timestamp:   field{keys: []string{"timestamp", "Timestamp", "date", "Date"}},
	storyID:     field{keys: []string{"storyId", "StoryId", "StoryID"}},
	storyTitle:  field{keys: []string{"storyTitle", "StoryTitle"}, fallback: "قصة عامة"},
	studentName: field{keys: []string{"studentName", "StudentName", "name", "Name"}, fallback: "طالب"},
	className:   field{keys: []string{"className", "ClassName", "class", "Class"}},
	answer:      field{keys: []string{"answer", "Answer"}},
}

// videoTypeValues are the raw type values that select a video story.
var videoTypeValues = map[string]struct{}{
	"video": {},
	"فيديو": {},
}

func (f field) lookup(rec domain.RawRecord) (string, bool) {
	for _, key := range f.keys {
		v, ok := rec[key]
		if !ok {
			continue
		}
		if s := scalar(v); s != "" {
			return s, true
		}
	}
	return "", false
}

func (f field) resolve(rec domain.RawRecord) string {
	if s, ok := f.lookup(rec); ok {
		return s
	}
	return f.fallback
}

func resolveType(rec domain.RawRecord) domain.StoryType {
	raw, ok := storyFields.typ.lookup(rec)
	if !ok {
		return domain.StoryText
	}
	if _, video := videoTypeValues[strings.ToLower(strings.TrimSpace(raw))]; video {
		return domain.StoryVideo
	}
	return domain.StoryText
}

// scalar renders a JSON scalar as the sheet would display it.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
