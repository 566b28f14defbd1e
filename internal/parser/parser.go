// Package parser splits Markdown notes into front-matter and body and
// derives the title and tag set.
//
// Front-matter is a flat block of "key: value" lines. Values are kept as
// strings (no number or boolean coercion); "[a, b]" and dash-item blocks
// become string lists.
package parser

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/starford/vaultvec/internal/apperr"
)

const (
	delim         = "---"
	fallbackTitle = "Untitled"
)

// tagRe takes every hash-prefixed word, wherever it appears. Headings never
// match because "#" is followed by a space or another "#".
var tagRe = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)

// Result holds the output of parsing a note. Diagnostic is non-nil when the
// front-matter was malformed and the whole text was kept as the body; it
// wraps apperr.ErrParseWarning.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Tags        []string
	Title       string
	Diagnostic  error
}

// Parse never fails. notePath is only used to derive a fallback title.
func Parse(data []byte, notePath string) Result {
	text := string(data)
	fm, body, diag := splitFrontmatter(text)

	return Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, notePath),
		Diagnostic:  diag,
	}
}

// splitFrontmatter separates the leading front-matter block from the body.
// If no block is present the entire text is body and no diagnostic is set.
func splitFrontmatter(text string) (map[string]any, string, error) {
	first, rest, ok := cutLine(text)
	if !ok || strings.TrimRight(first, "\r") != delim {
		return nil, text, nil
	}

	var block []string
	for {
		line, next, more := cutLine(rest)
		if strings.TrimRight(line, "\r") == delim {
			fm, err := parseBlock(block)
			if err != nil {
				return nil, text, err
			}
			return fm, next, nil
		}
		if !more {
			return nil, text, fmt.Errorf("%w: unterminated front-matter", apperr.ErrParseWarning)
		}
		block = append(block, strings.TrimRight(line, "\r"))
		rest = next
	}
}

// cutLine returns the first line of s (without its newline), the remainder
// and whether a newline was found.
func cutLine(s string) (string, string, bool) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

func parseBlock(lines []string) (map[string]any, error) {
	fm := make(map[string]any, len(lines))
	lastKey := ""
	for n, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(trimmed, "- ") || trimmed == "-" {
			if lastKey == "" {
				return nil, fmt.Errorf("%w: line %d: list item without key", apperr.ErrParseWarning, n+2)
			}
			item := unquote(strings.TrimSpace(strings.TrimPrefix(trimmed, "-")))
			switch v := fm[lastKey].(type) {
			case []string:
				if item != "" {
					fm[lastKey] = append(v, item)
				}
			case string:
				if v != "" {
					return nil, fmt.Errorf("%w: line %d: list item after scalar %q", apperr.ErrParseWarning, n+2, lastKey)
				}
				list := []string{}
				if item != "" {
					list = append(list, item)
				}
				fm[lastKey] = list
			}
			continue
		}

		idx := strings.Index(line, ":")
		if idx <= 0 {
			return nil, fmt.Errorf("%w: line %d: expected key: value", apperr.ErrParseWarning, n+2)
		}
		key := strings.TrimSpace(line[:idx])
		if key == "" {
			return nil, fmt.Errorf("%w: line %d: empty key", apperr.ErrParseWarning, n+2)
		}
		fm[key] = parseValue(strings.TrimSpace(line[idx+1:]))
		lastKey = key
	}
	return fm, nil
}

func parseValue(raw string) any {
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		list := []string{}
		if inner == "" {
			return list
		}
		for _, part := range strings.Split(inner, ",") {
			if item := unquote(strings.TrimSpace(part)); item != "" {
				list = append(list, item)
			}
		}
		return list
	}
	return unquote(raw)
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// extractTags collects the front-matter "tags" field followed by inline
// #tags from the body, deduplicated case-sensitively in first-seen order.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	switch v := fm["tags"].(type) {
	case string:
		add(v)
	case []string:
		for _, t := range v {
			add(t)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the front-matter title, else the filename stem,
// else "Untitled".
func deriveTitle(fm map[string]any, notePath string) string {
	if t, ok := fm["title"].(string); ok {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	base := path.Base(strings.ReplaceAll(notePath, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		return fallbackTitle
	}
	return stem
}
