package scanner

import (
	"regexp"
	"strings"
)

var (
	fencedCodeRegex = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRegex = regexp.MustCompile("`[^`\n]*`")
	urlRegex        = regexp.MustCompile(`https?://[^\s]+`)
	tagRegex        = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)
)

// ExtractImageURLs returns the targets of all markdown image references
// ("![alt](url)") found in content, in order of appearance.
func ExtractImageURLs(content string) []string {
	return extractLinkTargets(content, "![")
}

// ExtractVideoURLs returns the targets of all "[tg-video](url)" placeholders.
func ExtractVideoURLs(content string) []string {
	return extractLinkTargets(content, "[tg-video]")
}

// extractLinkTargets scans for marker followed by a parenthesized URL.
// Parenthesis matching is done by depth counting rather than a regexp, since
// URLs may themselves contain balanced parentheses. Unterminated or empty
// targets are skipped.
func extractLinkTargets(content, marker string) []string {
	urls := []string{}
	pos := 0
	for {
		idx := strings.Index(content[pos:], marker)
		if idx < 0 {
			break
		}
		start := pos + idx
		pos = start + len(marker)

		open := findTargetOpen(content, start, marker)
		if open < 0 {
			continue
		}

		end := matchParens(content, open)
		if end < 0 {
			continue
		}

		url := strings.TrimSpace(content[open+1 : end])
		pos = end + 1
		if url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}

// findTargetOpen returns the index of the "(" opening the link target, or -1
// if the marker is not followed by a "](" pair.
func findTargetOpen(content string, start int, marker string) int {
	if marker == "![" {
		// Image syntax carries arbitrary alt text before the closing bracket.
		end := strings.Index(content[start:], "](")
		if end < 0 {
			return -1
		}
		return start + end + 1
	}

	// Exact-label markers already include the closing bracket.
	open := start + len(marker)
	if open >= len(content) || content[open] != '(' {
		return -1
	}
	return open
}

// matchParens returns the index of the ")" closing the parenthesis at open,
// or -1 when unterminated.
func matchParens(content string, open int) int {
	depth := 0
	for i := open; i < len(content); i++ {
		switch content[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ExtractTags returns the lowercase, de-duplicated hashtag names found in
// content. Code fences and inline code spans are stripped first, and text is
// split on URLs so that a "#fragment" inside a link is never misread as a tag.
func ExtractTags(content string) []string {
	stripped := fencedCodeRegex.ReplaceAllString(content, " ")
	stripped = inlineCodeRegex.ReplaceAllString(stripped, " ")

	tags := []string{}
	seen := map[string]bool{}
	for _, segment := range urlRegex.Split(stripped, -1) {
		for _, match := range tagRegex.FindAllStringSubmatch(segment, -1) {
			name := strings.ToLower(match[1])
			if !seen[name] {
				seen[name] = true
				tags = append(tags, name)
			}
		}
	}
	return tags
}
