package extract

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	mdast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	mdtext "github.com/yuin/goldmark/text"
)

// Section is one heading of a Markdown document.
type Section struct {
	Level int    `json:"level"`
	Title string `json:"title"`
}

// openItemHeadings mark the section that lists unresolved questions.
var openItemHeadings = []string{"待确认", "to confirm", "open questions"}

func parseMarkdown(body string) (mdast.Node, []byte) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))
	src := []byte(body)
	return md.Parser().Parse(mdtext.NewReader(src)), src
}

// Outline returns the headings of a Markdown document in order.
func Outline(body string) []Section {
	root, src := parseMarkdown(body)

	var sections []Section
	_ = mdast.Walk(root, func(n mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if h, ok := n.(*mdast.Heading); ok && entering {
			if title := nodeText(h, src); title != "" {
				sections = append(sections, Section{Level: h.Level, Title: title})
			}
			return mdast.WalkSkipChildren, nil
		}
		return mdast.WalkContinue, nil
	})
	return sections
}

// OpenItems returns the list items found under a "待确认" / "To confirm"
// heading, or nil when the document has no such section.
func OpenItems(body string) []string {
	root, src := parseMarkdown(body)

	var items []string
	inSection := false
	sectionLevel := 0
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *mdast.Heading:
			if inSection && node.Level <= sectionLevel {
				inSection = false
			}
			if !inSection && isOpenItemHeading(nodeText(node, src)) {
				inSection = true
				sectionLevel = node.Level
			}
		case *mdast.List:
			if !inSection {
				continue
			}
			for li := node.FirstChild(); li != nil; li = li.NextSibling() {
				if text := nodeText(li, src); text != "" {
					items = append(items, text)
				}
			}
		}
	}
	return items
}

func isOpenItemHeading(title string) bool {
	lower := strings.ToLower(title)
	for _, h := range openItemHeadings {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// nodeText concatenates the text segments below n.
func nodeText(n mdast.Node, src []byte) string {
	var b bytes.Buffer
	_ = mdast.Walk(n, func(nn mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if !entering {
			return mdast.WalkContinue, nil
		}
		if tn, ok := nn.(*mdast.Text); ok {
			b.Write(tn.Segment.Value(src))
			if tn.SoftLineBreak() {
				b.WriteByte(' ')
			}
		}
		return mdast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
