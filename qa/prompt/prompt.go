// Package prompt assembles the tag-structured prompts sent to the model.
//
// A prompt is a sequence of sections separated by blank lines:
//
//	<SYSTEM>You are ...</SYSTEM>
//
//	<QUESTION>
//	Which mandis are in Punjab?
//	</QUESTION>
package prompt

import (
	"strings"
)

// Builder accumulates prompt sections in order
type Builder struct {
	sections []string
}

// New returns an empty builder
func New() *Builder {
	return &Builder{}
}

// Inline adds <NAME>body</NAME> on one line
func (b *Builder) Inline(name, body string) *Builder {
	b.sections = append(b.sections, "<"+name+">"+body+"</"+name+">")
	return b
}

// Block adds a section whose body sits on its own lines
func (b *Builder) Block(name, body string) *Builder {
	var sb strings.Builder
	sb.WriteString("<" + name + ">\n")
	sb.WriteString(strings.TrimRight(body, "\n"))
	sb.WriteString("\n</" + name + ">")
	b.sections = append(b.sections, sb.String())
	return b
}

// Bullets adds a block section with one "- " line per item
func (b *Builder) Bullets(name string, items ...string) *Builder {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return b.Block(name, strings.Join(lines, "\n"))
}

// Raw adds pre-rendered text as its own section
func (b *Builder) Raw(text string) *Builder {
	b.sections = append(b.sections, strings.TrimRight(text, "\n"))
	return b
}

// String joins the sections with blank lines
func (b *Builder) String() string {
	return strings.Join(b.sections, "\n\n")
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// Escape escapes &, < and > in element text
func Escape(s string) string {
	return textEscaper.Replace(s)
}

// EscapeAttr escapes element text plus double quotes for attribute values
func EscapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// Element renders <name>text</name> with text escaped
func Element(name, text string) string {
	return "<" + name + ">" + Escape(text) + "</" + name + ">"
}
