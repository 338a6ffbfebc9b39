package handlebars

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// stringHTMLToText strips tags, inserting a space at every tag boundary so
// adjacent words do not glue together, decodes entities (named and numeric)
// and collapses whitespace runs to a single space.
func stringHTMLToText(_ context.Context, _ *State, args []any) (any, error) {
	source := argsText(args)
	var b strings.Builder
	i := 0
	for i < len(source) {
		if source[i] == '<' {
			end := strings.IndexByte(source[i:], '>')
			if end < 0 {
				b.WriteString(source[i:])
				break
			}
			b.WriteByte(' ')
			i += end + 1
			continue
		}
		b.WriteByte(source[i])
		i++
	}
	text := html.UnescapeString(b.String())
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " ")), nil
}

// htmlTag is one parsed tag from the markdown converter's scanner.
type htmlTag struct {
	name    string
	closing bool
	attrs   string
}

// parseTag splits the inside of <...> into name, closing flag and the raw
// attribute string.
func parseTag(raw string) htmlTag {
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "/"))
	var t htmlTag
	if strings.HasPrefix(raw, "/") {
		t.closing = true
		raw = strings.TrimSpace(raw[1:])
	}
	if idx := strings.IndexAny(raw, " \t\r\n"); idx >= 0 {
		t.name = strings.ToLower(raw[:idx])
		t.attrs = raw[idx+1:]
	} else {
		t.name = strings.ToLower(raw)
	}
	return t
}

var attrPattern = regexp.MustCompile(`([a-zA-Z-]+)\s*=\s*"([^"]*)"`)

// attrValue extracts one double-quoted attribute value from a raw attribute
// string.
func attrValue(attrs, name string) string {
	for _, m := range attrPattern.FindAllStringSubmatch(attrs, -1) {
		if strings.EqualFold(m[1], name) {
			return m[2]
		}
	}
	return ""
}

type listLevel struct {
	ordered bool
	index   int
}

// mdConverter holds the scanner state for HTML-to-Markdown conversion.
type mdConverter struct {
	out      strings.Builder
	lists    []listLevel
	links    []string
	inPre    bool
	rowCells int
	headRow  bool
}

// stringHTMLToMarkdown converts a subset of HTML to Markdown: headings
// h1-h6, paragraphs, bold/em, links, ordered and unordered lists, images
// (reduced to their alt text), inline and preformatted code, and basic
// tables. Runs of blank lines in the result collapse to at most one.
func stringHTMLToMarkdown(_ context.Context, _ *State, args []any) (any, error) {
	source := argsText(args)
	c := &mdConverter{}
	i := 0
	for i < len(source) {
		if source[i] == '<' {
			end := strings.IndexByte(source[i:], '>')
			if end < 0 {
				c.text(source[i:])
				break
			}
			c.tag(parseTag(source[i+1 : i+end]))
			i += end + 1
			continue
		}
		next := strings.IndexByte(source[i:], '<')
		if next < 0 {
			c.text(source[i:])
			break
		}
		c.text(source[i : i+next])
		i += next
	}

	result := c.out.String()
	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(result), nil
}

func (c *mdConverter) text(s string) {
	if c.inPre {
		c.out.WriteString(html.UnescapeString(s))
		return
	}
	s = html.UnescapeString(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	if strings.TrimSpace(s) == "" {
		return
	}
	c.out.WriteString(s)
}

func (c *mdConverter) tag(t htmlTag) {
	switch t.name {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		if t.closing {
			c.out.WriteString("\n\n")
		} else {
			level := int(t.name[1] - '0')
			c.out.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		}
	case "p", "div":
		c.out.WriteString("\n\n")
	case "br":
		c.out.WriteString("\n")
	case "b", "strong":
		c.out.WriteString("**")
	case "i", "em":
		c.out.WriteString("*")
	case "a":
		if t.closing {
			href := ""
			if len(c.links) > 0 {
				href = c.links[len(c.links)-1]
				c.links = c.links[:len(c.links)-1]
			}
			c.out.WriteString(fmt.Sprintf("](%s)", href))
		} else {
			c.links = append(c.links, attrValue(t.attrs, "href"))
			c.out.WriteString("[")
		}
	case "img":
		if alt := attrValue(t.attrs, "alt"); alt != "" {
			c.out.WriteString(alt)
		}
	case "ul", "ol":
		if t.closing {
			if len(c.lists) > 0 {
				c.lists = c.lists[:len(c.lists)-1]
			}
			if len(c.lists) == 0 {
				c.out.WriteString("\n")
			}
		} else {
			c.lists = append(c.lists, listLevel{ordered: t.name == "ol"})
		}
	case "li":
		if t.closing || len(c.lists) == 0 {
			return
		}
		level := &c.lists[len(c.lists)-1]
		indent := strings.Repeat("  ", len(c.lists)-1)
		if level.ordered {
			level.index++
			c.out.WriteString(fmt.Sprintf("\n%s%d. ", indent, level.index))
		} else {
			c.out.WriteString("\n" + indent + "- ")
		}
	case "pre":
		if t.closing {
			c.inPre = false
			c.out.WriteString("\n```\n")
		} else {
			c.inPre = true
			c.out.WriteString("\n\n```\n")
		}
	case "code":
		if !c.inPre {
			c.out.WriteString("`")
		}
	case "table":
		c.out.WriteString("\n")
	case "tr":
		if t.closing {
			c.out.WriteString(" |\n")
			if c.headRow && c.rowCells > 0 {
				c.out.WriteString("|" + strings.Repeat(" --- |", c.rowCells) + "\n")
			}
			c.headRow = false
			c.rowCells = 0
		} else {
			c.out.WriteString("|")
		}
	case "th", "td":
		if t.closing {
			return
		}
		if c.rowCells > 0 {
			c.out.WriteString(" |")
		}
		c.out.WriteString(" ")
		c.rowCells++
		if t.name == "th" {
			c.headRow = true
		}
	}
}
