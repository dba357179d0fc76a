package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// actionPattern matches a template action, including trim markers and
	// comments. Actions may span lines.
	actionPattern = regexp.MustCompile(`(?s)\{\{.*?\}\}`)

	placeholderPattern = regexp.MustCompile(`SPARKACTION(\d+)X`)

	// loneParagraph matches a paragraph that holds nothing but placeholders.
	loneParagraph = regexp.MustCompile(`<p>\s*((?:SPARKACTION\d+X\s*)+)</p>`)
)

// controlKeywords open, continue or close a block, or produce no output.
// Actions starting with them must not stay wrapped in <p> elements.
var controlKeywords = []string{
	"if", "else", "end", "range", "with", "define", "block", "template", "break", "continue", "/*",
}

func placeholder(i int) string {
	return "SPARKACTION" + strconv.Itoa(i) + "X"
}

// protectActions swaps every template action for a placeholder made only of
// letters and digits, which markdown leaves untouched.
func protectActions(src []byte) ([]byte, []string) {
	var actions []string
	out := actionPattern.ReplaceAllFunc(src, func(m []byte) []byte {
		actions = append(actions, string(m))
		return []byte(placeholder(len(actions) - 1))
	})
	return out, actions
}

// restoreActions unwraps paragraphs consisting only of control actions and
// puts the original actions back.
func restoreActions(html []byte, actions []string) []byte {
	if len(actions) == 0 {
		return html
	}

	html = loneParagraph.ReplaceAllFunc(html, func(m []byte) []byte {
		inner := loneParagraph.FindSubmatch(m)[1]
		for _, idx := range placeholderPattern.FindAllSubmatch(inner, -1) {
			if !isControl(lookup(actions, idx[1])) {
				return m
			}
		}
		return inner
	})

	return placeholderPattern.ReplaceAllFunc(html, func(m []byte) []byte {
		idx := placeholderPattern.FindSubmatch(m)[1]
		if a := lookup(actions, idx); a != "" {
			return []byte(a)
		}
		return m
	})
}

func lookup(actions []string, idx []byte) string {
	i, err := strconv.Atoi(string(idx))
	if err != nil || i < 0 || i >= len(actions) {
		return ""
	}
	return actions[i]
}

// isControl reports whether action (with delimiters) starts with a control keyword.
func isControl(action string) bool {
	body := strings.TrimPrefix(action, "{{")
	body = strings.TrimSuffix(body, "}}")
	body = strings.TrimPrefix(body, "-")
	body = strings.TrimSpace(body)
	for _, kw := range controlKeywords {
		if !strings.HasPrefix(body, kw) {
			continue
		}
		rest := body[len(kw):]
		if kw == "/*" || rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '-' {
			return true
		}
	}
	return false
}
