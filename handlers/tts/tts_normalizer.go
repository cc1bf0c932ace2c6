package tts

import (
	"regexp"
	"strings"
)

// normalizeTextForTTS strips what a voice should not read out: markdown markers, emoji and
// layout whitespace.
func normalizeTextForTTS(text string) string {
	text = removeMarkdown(text)
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	text = removeEmojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func removeMarkdown(text string) string {
	text = codeFenceRegex.ReplaceAllString(text, "")
	text = headingRegex.ReplaceAllString(text, "")
	text = bulletRegex.ReplaceAllString(text, "")
	text = linkRegex.ReplaceAllString(text, "$1")
	return markdownReplacer.Replace(text)
}

var (
	markdownReplacer = strings.NewReplacer(
		"**", "", // bold
		"__", "", // underline
		"~~", "", // strikethrough
		"*", "", // italic
		"`", "", // inline code
	)

	codeFenceRegex      = regexp.MustCompile("(?m)^```.*$")
	headingRegex        = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	bulletRegex         = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	linkRegex           = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}\p{Sc}\p{Sm}]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)
