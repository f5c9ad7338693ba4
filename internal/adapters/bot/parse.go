package bot

import (
	"errors"
	"strings"
	"unicode"

	"qissati/internal/domain"
)

var errAnswerFormat = errors.New("answer must be: name | class | text")

// splitCommand separates "/cmd@bot payload" into "cmd" and "payload".
// Plain text yields an empty command.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	head, payload := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, payload = head[:i], head[i:]
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(payload)
}

// ParseAnswer reads "name | class | answer". The answer may itself contain '|'.
func ParseAnswer(payload string) (domain.Answer, error) {
	parts := strings.SplitN(payload, "|", 3)
	if len(parts) != 3 {
		return domain.Answer{}, errAnswerFormat
	}
	a := domain.Answer{
		Name:  strings.TrimSpace(parts[0]),
		Class: strings.TrimSpace(parts[1]),
		Text:  strings.TrimSpace(parts[2]),
	}
	if a.Name == "" || a.Class == "" || a.Text == "" {
		return domain.Answer{}, errAnswerFormat
	}
	return a, nil
}
