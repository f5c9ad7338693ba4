// Package telegram formats stories for Telegram chats.
package telegram

import "strings"

const messageLimit = 4096

// SplitMessage cuts text into chunks within the Bot API limit, preferring
// paragraph breaks and then line breaks. Lengths are counted in runes.
func SplitMessage(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	var parts []string
	for len(runes) > messageLimit {
		cut := lastBreak(runes[:messageLimit])
		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			parts = append(parts, chunk)
		}
		runes = []rune(strings.TrimLeft(string(runes[cut:]), "\n "))
	}
	if chunk := strings.TrimSpace(string(runes)); chunk != "" {
		parts = append(parts, chunk)
	}
	return parts
}

// lastBreak returns the index just after the best break in window, or
// len(window) when there is none.
func lastBreak(window []rune) int {
	line := -1
	for i := len(window) - 1; i > 0; i-- {
		if window[i] != '\n' {
			continue
		}
		if window[i-1] == '\n' {
			return i + 1
		}
		if line == -1 {
			line = i + 1
		}
	}
	if line > 0 {
		return line
	}
	return len(window)
}
