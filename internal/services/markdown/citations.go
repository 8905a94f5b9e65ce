package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

// inlineLinkRe matches [text](url "title"). Image links ![alt](url) are
// excluded by checking the byte before each match rather than consuming it,
// so adjacent links all match.
var inlineLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)

// RewriteCitations replaces in-body markdown links with text⟨N⟩ citation
// tokens and appends a "## References" section listing ⟨N⟩ url, numbered by
// first occurrence. Markdown without links is returned unchanged.
func RewriteCitations(markdown string) string {
	numbers := make(map[string]int)
	var order []string

	var b strings.Builder
	last := 0
	for _, m := range inlineLinkRe.FindAllStringSubmatchIndex(markdown, -1) {
		start, end := m[0], m[1]
		if start > 0 && markdown[start-1] == '!' {
			continue
		}
		text := markdown[m[2]:m[3]]
		url := markdown[m[4]:m[5]]

		n, ok := numbers[url]
		if !ok {
			n = len(order) + 1
			numbers[url] = n
			order = append(order, url)
		}

		b.WriteString(markdown[last:start])
		if strings.TrimSpace(text) == "" {
			fmt.Fprintf(&b, "⟨%d⟩", n)
		} else {
			fmt.Fprintf(&b, "%s⟨%d⟩", text, n)
		}
		last = end
	}

	if len(order) == 0 {
		return markdown
	}
	b.WriteString(markdown[last:])

	out := strings.Builder{}
	out.WriteString(strings.TrimRight(b.String(), "\n"))
	out.WriteString("\n\n## References\n\n")
	for i, url := range order {
		fmt.Fprintf(&out, "⟨%d⟩ %s\n", i+1, url)
	}
	return out.String()
}
