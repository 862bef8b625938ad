package layout

import (
	"sort"
	"strings"
)

// Node is one entry in a doc index tree: either a leaf (a linked page)
// or an interior node (a package/module grouping), the data model behind
// `forge doc`'s generated HTML index.
type Node interface {
	render(depth int, b *strings.Builder)
}

// Leaf is a single linked entry, e.g. one package's crate-doc page.
type Leaf struct {
	Label string
	Href  string
}

func (l Leaf) render(depth int, b *strings.Builder) {
	writeIndent(b, depth)
	b.WriteString(`<li><a href="` + l.Href + `">` + l.Label + "</a></li>\n")
}

// Mapping is a named group of child Nodes, sorted by label when Sort is
// called.
type Mapping struct {
	Label    string
	children []Node
	labels   []string
}

// NewMapping builds an empty named Mapping.
func NewMapping(label string) *Mapping {
	return &Mapping{Label: label}
}

// Add appends a child Node under label, used for ordering during Sort.
func (m *Mapping) Add(label string, child Node) {
	m.labels = append(m.labels, label)
	m.children = append(m.children, child)
}

// Sort orders this Mapping's direct children by label, ascending.
func (m *Mapping) Sort() *Mapping {
	idx := make([]int, len(m.children))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return m.labels[idx[i]] < m.labels[idx[j]] })
	sortedLabels := make([]string, len(idx))
	sortedChildren := make([]Node, len(idx))
	for i, j := range idx {
		sortedLabels[i] = m.labels[j]
		sortedChildren[i] = m.children[j]
	}
	m.labels, m.children = sortedLabels, sortedChildren
	return m
}

func (m *Mapping) render(depth int, b *strings.Builder) {
	writeIndent(b, depth)
	b.WriteString("<li>" + m.Label + "\n")
	writeIndent(b, depth+1)
	b.WriteString("<ul>\n")
	for _, c := range m.children {
		c.render(depth+2, b)
	}
	writeIndent(b, depth+1)
	b.WriteString("</ul>\n")
	writeIndent(b, depth)
	b.WriteString("</li>\n")
}

// List is an unlabeled sequence of Nodes, e.g. the top-level list of
// workspace packages on the doc index page.
type List struct {
	children []Node
}

// NewList builds an empty List.
func NewList() *List { return &List{} }

// Add appends a child Node.
func (l *List) Add(child Node) { l.children = append(l.children, child) }

func (l *List) render(depth int, b *strings.Builder) {
	writeIndent(b, depth)
	b.WriteString("<ul>\n")
	for _, c := range l.children {
		c.render(depth+1, b)
	}
	writeIndent(b, depth)
	b.WriteString("</ul>\n")
}

func writeIndent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}

// IndexPage renders an HTML index page titled title whose body is root
// rendered as nested <ul> lists; the caller decides the tree's shape.
func IndexPage(title string, root Node) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>" + title + "</title></head><body>\n")
	b.WriteString("<h1>" + title + "</h1>\n")
	root.render(0, &b)
	b.WriteString("</body></html>\n")
	return b.String()
}
