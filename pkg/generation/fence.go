package generation

import "strings"

const fence = "```"

// StripCodeFence убирает обрамление ```json ... ``` вокруг ответа модели.
// Текст до открывающего и после закрывающего забора отбрасывается.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, fence)
	if start < 0 {
		return s
	}
	rest := s[start+len(fence):]
	// Первая строка после забора может быть тегом языка
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(rest[:nl]); !strings.ContainsAny(tag, "{[") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.LastIndex(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
