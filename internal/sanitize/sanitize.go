package sanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

// Profile names a fixed set of allowed tags and attributes.
type Profile string

const (
	// Strict allows text and structural markup only. Used for static
	// rendering of model output.
	Strict Profile = "strict"

	// Interactive is a superset of Strict that additionally permits style,
	// form controls, data-* and ARIA attributes. Script tags remain
	// forbidden in both profiles; script bodies travel out-of-band.
	Interactive Profile = "interactive"
)

var strictElements = []string{
	"p", "div", "span", "br", "hr",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"ul", "ol", "li",
	"b", "i", "em", "strong", "u", "code", "pre",
	"a", "blockquote",
	"table", "thead", "tbody", "tr", "th", "td",
}

var interactiveElements = []string{
	"style", "label", "button", "input", "select", "option", "textarea",
}

// ariaAttrs is the set of ARIA attributes the interactive profile accepts.
// bluemonday matches attribute names exactly, so they are enumerated.
var ariaAttrs = []string{
	"role",
	"aria-label", "aria-labelledby", "aria-describedby",
	"aria-hidden", "aria-live", "aria-atomic",
	"aria-checked", "aria-disabled", "aria-expanded", "aria-pressed",
	"aria-selected", "aria-controls", "aria-haspopup",
	"aria-valuenow", "aria-valuemin", "aria-valuemax", "aria-valuetext",
}

// Sanitizer strips untrusted markup down to a named profile. It never fails:
// forbidden content is dropped, not rejected.
type Sanitizer struct {
	strict      *bluemonday.Policy
	interactive *bluemonday.Policy
}

// New builds the two fixed policies.
func New() *Sanitizer {
	return &Sanitizer{
		strict:      strictPolicy(),
		interactive: interactivePolicy(),
	}
}

// Sanitize returns html reduced to the given profile. An unknown profile
// falls back to strict.
func (s *Sanitizer) Sanitize(html string, profile Profile) string {
	if profile == Interactive {
		return s.interactive.Sanitize(html)
	}
	return s.strict.Sanitize(html)
}

func basePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(strictElements...)
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("type", "checked", "disabled").Globally()
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	return p
}

func strictPolicy() *bluemonday.Policy {
	p := basePolicy()
	// Drop the contents of containers that must never leak text into the
	// output, not just their tags.
	p.SkipElementsContent("script", "style", "iframe", "object", "form", "svg", "math")
	return p
}

func interactivePolicy() *bluemonday.Policy {
	p := basePolicy()
	p.AllowElements(interactiveElements...)
	p.AllowAttrs("id", "name", "value", "placeholder", "for").Globally()
	p.AllowAttrs(ariaAttrs...).Globally()
	p.AllowDataAttributes()
	p.SkipElementsContent("script", "iframe", "object", "form", "svg", "math")
	return p
}
