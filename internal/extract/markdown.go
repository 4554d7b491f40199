package extract

import (
	"context"
	"regexp"
	"strings"
)

var (
	mdImage       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdRefLink     = regexp.MustCompile(`\[([^\]]+)\]\[[^\]]*\]`)
	mdRefDef      = regexp.MustCompile(`^\s{0,3}\[[^\]]+\]:\s+\S+.*$`)
	mdHeading     = regexp.MustCompile(`^\s{0,3}#{1,6}\s+`)
	mdHeadingTail = regexp.MustCompile(`\s+#+\s*$`)
	mdBlockquote  = regexp.MustCompile(`^\s{0,3}>\s?`)
	mdRule        = regexp.MustCompile(`^\s{0,3}([-*_])(\s*[-*_]){2,}\s*$`)
	mdBullet      = regexp.MustCompile(`^(\s*)[-*+]\s+(\[[ xX]\]\s+)?`)
	mdNumbered    = regexp.MustCompile(`^(\s*)\d+[.)]\s+`)
	mdStrong      = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
	mdEmphasis    = regexp.MustCompile(`(^|[^\w*])[*_](\S(?:[^*_]*?\S)?)[*_]`)
	mdStrike      = regexp.MustCompile(`~~(.+?)~~`)
	mdInlineCode  = regexp.MustCompile("`+([^`]+)`+")
	mdHTMLTag     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	mdTableRule   = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?\s*$`)
	mdBlankRun    = regexp.MustCompile(`\n{3,}`)
)

// MarkdownExtractor strips Markdown markup down to readable text. Fenced
// code blocks keep their content without the fences.
type MarkdownExtractor struct {
	types mediaTypes
}

func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{types: mediaTypes{"text/markdown", "text/x-markdown"}}
}

func (e *MarkdownExtractor) Supports(contentType string) bool {
	return e.types.supports(contentType)
}

func (e *MarkdownExtractor) ContentTypes() []string {
	return append([]string(nil), e.types...)
}

func (e *MarkdownExtractor) Extract(_ context.Context, data []byte, contentType string) (string, error) {
	text, err := decodeUTF8(data, contentType)
	if err != nil {
		return "", err
	}
	return StripMarkdown(text), nil
}

// StripMarkdown converts Markdown source to plain text.
func StripMarkdown(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))

	fence := ""
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if fence != "" {
			if strings.HasPrefix(trimmed, fence) && strings.Trim(trimmed, fence[:1]) == "" {
				fence = ""
				continue
			}
			out = append(out, line)
			continue
		}
		if f := openingFence(trimmed); f != "" {
			fence = f
			continue
		}
		out = append(out, stripMarkdownLine(line))
	}

	text := strings.Join(out, "\n")
	text = mdBlankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func openingFence(line string) string {
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, marker) {
			n := len(line) - len(strings.TrimLeft(line, marker[:1]))
			return strings.Repeat(marker[:1], n)
		}
	}
	return ""
}

func stripMarkdownLine(line string) string {
	if mdRule.MatchString(line) || mdTableRule.MatchString(line) || mdRefDef.MatchString(line) {
		return ""
	}

	line = mdBlockquote.ReplaceAllString(line, "")
	if mdHeading.MatchString(line) {
		line = mdHeading.ReplaceAllString(line, "")
		line = mdHeadingTail.ReplaceAllString(line, "")
	}
	line = mdBullet.ReplaceAllString(line, "$1")
	line = mdNumbered.ReplaceAllString(line, "$1")

	line = mdImage.ReplaceAllString(line, "$1")
	line = mdLink.ReplaceAllString(line, "$1")
	line = mdRefLink.ReplaceAllString(line, "$1")
	line = mdInlineCode.ReplaceAllString(line, "$1")
	line = mdStrong.ReplaceAllString(line, "$2")
	line = mdEmphasis.ReplaceAllString(line, "$1$2")
	line = mdStrike.ReplaceAllString(line, "$1")
	line = mdHTMLTag.ReplaceAllString(line, "")

	if strings.Contains(line, "|") && strings.HasPrefix(strings.TrimSpace(line), "|") {
		cells := strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		line = strings.Join(cells, " ")
	}

	return strings.TrimRight(line, " \t")
}
