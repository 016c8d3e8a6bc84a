// CLAUDE:SUMMARY Prompt-contract tag/attribute whitelist and the optional bluemonday enforcement policy.
package layout

import "github.com/microcosm-cc/bluemonday"

// AllowedTags is the HTML dialect the model is prompted to emit. It bounds
// what the sanitizer and markdown converter must handle.
var AllowedTags = []string{
	"math", "br", "i", "b", "u", "del", "sup", "sub",
	"table", "tr", "td", "p", "th", "div", "pre",
	"h1", "h2", "h3", "h4", "h5",
	"ul", "ol", "li", "input", "a", "span", "img", "hr",
	"tbody", "small", "caption", "strong", "thead", "big", "code",
}

// AllowedAttributes is the attribute whitelist paired with AllowedTags.
var AllowedAttributes = []string{
	"class", "colspan", "rowspan", "display", "checked",
	"type", "border", "value", "style", "href", "alt", "align",
}

// StrictPolicy builds a bluemonday policy from the prompt whitelist. The
// model usually respects its contract, so enforcement is optional; the policy
// is applied to cleaned HTML when a caller wants a hard guarantee.
func StrictPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(AllowedTags...)
	p.AllowAttrs(AllowedAttributes...).Globally()
	// The sanitizer injects generated src values; they are not part of the
	// model's attribute contract.
	p.AllowAttrs("src").OnElements("img")
	return p
}
