package render

import (
	"regexp"
	"strings"
)

// Reasoning models wrap deliberation in <think> or <thinking> tags; an
// unterminated tag means the block ran to the end of the output.
var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think(?:ing)?>(.*?)</think(?:ing)?>`)
	thinkOpenRe  = regexp.MustCompile(`(?s)<think(?:ing)?>(.*)$`)
)

// SplitThink separates think-block content from the visible response.
// If no think block is present, think is empty and found is false.
func SplitThink(content string) (think, response string, found bool) {
	if matches := thinkBlockRe.FindStringSubmatch(content); len(matches) > 1 {
		think = strings.TrimSpace(matches[1])
		response = strings.TrimSpace(thinkBlockRe.ReplaceAllString(content, ""))
		return think, response, true
	}
	if matches := thinkOpenRe.FindStringSubmatch(content); len(matches) > 1 {
		think = strings.TrimSpace(matches[1])
		response = strings.TrimSpace(thinkOpenRe.ReplaceAllString(content, ""))
		return think, response, true
	}
	return "", content, false
}
