package sanitize

import "regexp"

// scriptBlock matches a whole <script> block including its body. Case
// insensitive, dot matches newlines, non-greedy so adjacent blocks stay
// separate.
var scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>(.*?)</script>`)

// ExtractScripts pulls every <script> body out of html in document order and
// returns the markup with the blocks removed. The bodies are returned
// verbatim so the executor controls execution order; they must never be
// re-inlined into the markup.
func ExtractScripts(html string) (string, []string) {
	matches := scriptBlock.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		return html, nil
	}

	bodies := make([]string, 0, len(matches))
	for _, m := range matches {
		bodies = append(bodies, m[1])
	}

	return scriptBlock.ReplaceAllString(html, ""), bodies
}
