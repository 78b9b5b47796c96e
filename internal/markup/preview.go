// Package markup turns markdown feed post bodies into short plain-text
// previews suitable for a notification body.
package markup

import (
	"bytes"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DefaultPreviewLength is the rune budget for a notification body.
const DefaultPreviewLength = 140

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Block-level elements are replaced by spaces before all tags are stripped,
// so paragraphs do not run together.
var blockTags = strings.NewReplacer(
	"</p>", " </p>",
	"</li>", " </li>",
	"</h1>", " </h1>", "</h2>", " </h2>", "</h3>", " </h3>",
	"</h4>", " </h4>", "</h5>", " </h5>", "</h6>", " </h6>",
	"<br>", " ", "<br/>", " ", "<br />", " ",
	"</blockquote>", " </blockquote>",
	"</td>", " </td>", "</th>", " </th>",
)

var stripAll = bluemonday.StrictPolicy()

// Preview renders markdown, strips every tag and collapses whitespace,
// truncating to max runes on a word boundary with a trailing ellipsis.
func Preview(markdown string, max int) string {
	if max <= 0 {
		max = DefaultPreviewLength
	}
	var buf bytes.Buffer
	text := markdown
	if err := md.Convert([]byte(markdown), &buf); err == nil {
		text = html.UnescapeString(stripAll.Sanitize(blockTags.Replace(buf.String())))
	}
	text = strings.Join(strings.Fields(text), " ")
	return truncate(text, max)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max-1])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + "…"
}
