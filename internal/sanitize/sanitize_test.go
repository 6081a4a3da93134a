package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrictDropsActiveContent(t *testing.T) {
	s := New()

	tests := []struct {
		name  string
		input string
	}{
		{"script tag", `<p>hi</p><script>window.x=1</script>`},
		{"style tag", `<style>body{display:none}</style><p>ok</p>`},
		{"iframe", `<iframe src="https://evil.example"></iframe>`},
		{"object", `<object data="x.swf"></object>`},
		{"form", `<form action="/steal"><input name="pw"></form>`},
		{"svg", `<svg onload="alert(1)"></svg>`},
		{"math", `<math><mi>x</mi></math>`},
		{"nested script", `<div><script>fetch('/')</script></div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Sanitize(tt.input, Strict)
			for _, tag := range []string{"<script", "<style", "<iframe", "<object", "<form", "<svg", "<math"} {
				assert.NotContains(t, out, tag)
			}
		})
	}
}

func TestStrictKeepsStructuralMarkup(t *testing.T) {
	s := New()

	out := s.Sanitize(`<p>hi</p><script>window.x=1</script>`, Strict)
	assert.Equal(t, "<p>hi</p>", out)

	out = s.Sanitize(`<h2>Title</h2><ul><li class="item">one</li></ul>`, Strict)
	assert.Contains(t, out, "<h2>Title</h2>")
	assert.Contains(t, out, `<li class="item">one</li>`)

	out = s.Sanitize(`<a href="https://example.com">link</a>`, Strict)
	assert.Contains(t, out, `href="https://example.com"`)
}

func TestStrictDropsEventHandlers(t *testing.T) {
	s := New()

	out := s.Sanitize(`<p onclick="alert(1)" onmouseover="x()">text</p>`, Strict)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "onmouseover")
	assert.Contains(t, out, "text")
}

func TestStrictDropsJavascriptURLs(t *testing.T) {
	s := New()

	out := s.Sanitize(`<a href="javascript:alert(1)">x</a>`, Strict)
	assert.NotContains(t, out, "javascript:")
}

func TestInteractiveAllowsControls(t *testing.T) {
	s := New()

	out := s.Sanitize(`<label for="q">Q1</label><button data-answer="b" aria-pressed="false">B</button><input type="checkbox" checked>`, Interactive)
	assert.Contains(t, out, "<label")
	assert.Contains(t, out, "<button")
	assert.Contains(t, out, `data-answer="b"`)
	assert.Contains(t, out, `aria-pressed="false"`)
	assert.Contains(t, out, "checked")
}

func TestInteractiveStillForbidsScript(t *testing.T) {
	s := New()

	out := s.Sanitize(`<button>ok</button><script>document.body.remove()</script>`, Interactive)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "document.body.remove")
}

func TestSanitizeNeverFails(t *testing.T) {
	s := New()

	inputs := []string{
		"",
		"<",
		"<<<>>>",
		strings.Repeat("<div>", 500),
		"plain text only",
		`<p>unclosed`,
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			s.Sanitize(in, Strict)
			s.Sanitize(in, Interactive)
			s.Sanitize(in, Profile("bogus"))
		})
	}
}

func TestUnknownProfileFallsBackToStrict(t *testing.T) {
	s := New()

	out := s.Sanitize(`<button>b</button><p>t</p>`, Profile("bogus"))
	assert.NotContains(t, out, "<button")
	assert.Contains(t, out, "<p>t</p>")
}

func TestExtractScriptsOrderAndRemoval(t *testing.T) {
	html := `<div id='t'></div><script>first()</script><p>mid</p><SCRIPT type="text/javascript">second()</SCRIPT>`

	stripped, bodies := ExtractScripts(html)
	assert.Equal(t, []string{"first()", "second()"}, bodies)
	assert.NotContains(t, stripped, "<script")
	assert.NotContains(t, stripped, "first()")
	assert.Contains(t, stripped, "<div id='t'></div>")
	assert.Contains(t, stripped, "<p>mid</p>")
}

func TestExtractScriptsMultiline(t *testing.T) {
	html := "<div></div><script>\nlet a = 1;\nlet b = 2;\n</script>"

	stripped, bodies := ExtractScripts(html)
	assert.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "let a = 1;")
	assert.Equal(t, "<div></div>", stripped)
}

func TestExtractScriptsNone(t *testing.T) {
	stripped, bodies := ExtractScripts("<p>nothing here</p>")
	assert.Equal(t, "<p>nothing here</p>", stripped)
	assert.Nil(t, bodies)
}
