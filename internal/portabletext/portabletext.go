// Package portabletext renders Sanity Portable Text blocks to sanitized HTML.
package portabletext

import (
	"html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"bitpoet.dev/bitpoet-web/internal/links"
)

// Block is a Portable Text block. Only "block" typed entries are rendered.
type Block struct {
	Key      string    `json:"_key,omitempty"`
	Type     string    `json:"_type,omitempty"`
	Style    string    `json:"style,omitempty"`
	ListItem string    `json:"listItem,omitempty"`
	Level    int       `json:"level,omitempty"`
	Children []Span    `json:"children,omitempty"`
	MarkDefs []MarkDef `json:"markDefs,omitempty"`
}

// Span is an inline run of text with decorator or annotation marks.
type Span struct {
	Key   string   `json:"_key,omitempty"`
	Type  string   `json:"_type,omitempty"`
	Text  string   `json:"text"`
	Marks []string `json:"marks,omitempty"`
}

// MarkDef defines an annotation referenced from Span.Marks.
type MarkDef struct {
	Key  string `json:"_key"`
	Type string `json:"_type"`
	Href string `json:"href,omitempty"`
}

var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

var blockTags = map[string]string{
	"":           "p",
	"normal":     "p",
	"h1":         "h2",
	"h2":         "h2",
	"h3":         "h3",
	"h4":         "h4",
	"blockquote": "blockquote",
}

var decorators = map[string]string{
	"strong":         "strong",
	"em":             "em",
	"code":           "code",
	"underline":      "u",
	"strike-through": "s",
}

// Render converts blocks to HTML. Consecutive list items are grouped into ul/ol.
// The output is sanitized.
func Render(blocks []Block) template.HTML {
	if len(blocks) == 0 {
		return ""
	}
	var b strings.Builder
	openList := ""
	closeList := func() {
		if openList != "" {
			b.WriteString("</" + openList + ">")
			openList = ""
		}
	}
	for _, blk := range blocks {
		if blk.Type != "" && blk.Type != "block" {
			continue
		}
		if blk.ListItem != "" {
			tag := "ul"
			if blk.ListItem == "number" {
				tag = "ol"
			}
			if openList != tag {
				closeList()
				b.WriteString("<" + tag + ">")
				openList = tag
			}
			b.WriteString("<li>")
			writeChildren(&b, blk)
			b.WriteString("</li>")
			continue
		}
		closeList()
		tag, ok := blockTags[blk.Style]
		if !ok {
			tag = "p"
		}
		b.WriteString("<" + tag + ">")
		writeChildren(&b, blk)
		b.WriteString("</" + tag + ">")
	}
	closeList()
	return template.HTML(policy.Sanitize(b.String()))
}

func writeChildren(b *strings.Builder, blk Block) {
	defs := make(map[string]MarkDef, len(blk.MarkDefs))
	for _, d := range blk.MarkDefs {
		defs[d.Key] = d
	}
	for _, span := range blk.Children {
		text := strings.ReplaceAll(html.EscapeString(span.Text), "\n", "<br>")
		open, close := "", ""
		for _, mark := range span.Marks {
			if tag, ok := decorators[mark]; ok {
				open += "<" + tag + ">"
				close = "</" + tag + ">" + close
				continue
			}
			def, ok := defs[mark]
			if !ok || def.Type != "link" || strings.TrimSpace(def.Href) == "" {
				continue
			}
			href := links.Normalize(def.Href, "/")
			open += `<a href="` + html.EscapeString(href) + `">`
			close = "</a>" + close
		}
		b.WriteString(open + text + close)
	}
}

// PlainText joins the text of all blocks, one paragraph per line.
func PlainText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		var line strings.Builder
		for _, span := range blk.Children {
			line.WriteString(span.Text)
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Excerpt returns at most n runes of PlainText, cut on a word boundary.
func Excerpt(blocks []Block, n int) string {
	text := strings.Join(strings.Fields(PlainText(blocks)), " ")
	r := []rune(text)
	if n <= 0 || len(r) <= n {
		return text
	}
	cut := string(r[:n])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
