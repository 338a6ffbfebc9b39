package handlebars

import (
	"strings"
	"testing"
)

func TestStringTitlecase(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		in, want string
	}{
		{"the lord of the rings", "The Lord of the Rings"},
		{"a tale of two cities", "A Tale of Two Cities"},
		{"of mice and men", "Of Mice and Men"},       // first word always capitalized
		{"the way back to", "The Way Back To"},       // last word always capitalized
		{"war and peace", "War and Peace"},
		{"", ""},
		{"hello", "Hello"},
	}
	for _, tc := range cases {
		got := expand(t, e, `{{string.titlecase "`+tc.in+`"}}`, nil)
		if got != tc.want {
			t.Errorf("titlecase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStringTitlecase_ConfigurableSmallWords(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.Config()
	cfg.SmallWords = []string{"versus"}
	e.SetConfig(&cfg)

	got := expand(t, e, `{{string.titlecase "alien versus the predator"}}`, nil)
	if got != "Alien versus The Predator" {
		t.Errorf("custom small-word list not honored: %q", got)
	}
}

func TestStringSlugify(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		in, want string
	}{
		{"Café", "cafe"},
		{" hello  -  world ", "hello-world"},
		{"naïve café", "naive-cafe"},
		{"Hello, World! 123", "hello-world-123"},
		{"---", ""},
		{"déjà vu", "deja-vu"},
	}
	for _, tc := range cases {
		got := expand(t, e, `{{string.slugify "`+tc.in+`"}}`, nil)
		if got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStringCase(t *testing.T) {
	e := newTestEngine(t)
	if got := expand(t, e, `{{string.uppercase "abc"}}{{string.lowercase "DEF"}}`, nil); got != "ABCdef" {
		t.Errorf("case helpers wrong: %q", got)
	}
	if got := expand(t, e, `{{string.length "héllo"}}`, nil); got != "5" {
		t.Errorf("length should count runes, got %q", got)
	}
}

func TestStringURLRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	data := map[string]any{"s": "a b&c=d/é"}

	encoded := expand(t, e, "{{string.encodeUrl s}}", data)
	if strings.ContainsAny(encoded, " &=/é") {
		t.Errorf("encodeUrl left reserved characters: %q", encoded)
	}
	roundTrip := expand(t, e, "{{string.decodeUrl (string.encodeUrl s)}}", data)
	if roundTrip != "a b&c=d/é" {
		t.Errorf("url round trip failed: %q", roundTrip)
	}

	// Invalid escapes return the input unchanged rather than failing.
	if got := expand(t, e, `{{string.decodeUrl "hello%"}}`, nil); got != "hello%" {
		t.Errorf("decodeUrl should tolerate invalid escapes, got %q", got)
	}
	if got := expand(t, e, `{{string.decodeUrl "100%zz"}}`, nil); got != "100%zz" {
		t.Errorf("decodeUrl should tolerate invalid escapes, got %q", got)
	}
}

func TestStringEncodeHTML(t *testing.T) {
	e := newTestEngine(t)
	data := map[string]any{"s": `<a href="x">it's & done</a>`}
	want := "&lt;a href=&quot;x&quot;&gt;it&#39;s &amp; done&lt;/a&gt;"
	if got := expand(t, e, "{{string.encodeHtml s}}", data); got != want {
		t.Errorf("encodeHtml = %q, want %q", got, want)
	}
}

func TestStringHTMLToText(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		in, want string
	}{
		{"<b>hello</b>world", "hello world"},
		{"<p>one</p><p>two</p>", "one two"},
		{"a &amp; b &#233;", "a & b é"},
		{"  lots\n\nof\twhitespace  ", "lots of whitespace"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		data := map[string]any{"s": tc.in}
		if got := expand(t, e, "{{string.htmlToText s}}", data); got != tc.want {
			t.Errorf("htmlToText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStringHTMLToMarkdown(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		name, in, want string
	}{
		{"heading", "<h2>Title</h2>", "## Title"},
		{"bold and em", "<p>a <b>bold</b> and <em>italic</em> word</p>", "a **bold** and *italic* word"},
		{"link", `<a href="https://example.org">site</a>`, "[site](https://example.org)"},
		{"image alt", `<img src="x.png" alt="a diagram">`, "a diagram"},
		{"inline code", "<code>x = 1</code>", "`x = 1`"},
		{
			"unordered list",
			"<ul><li>one</li><li>two</li></ul>",
			"- one\n- two",
		},
		{
			"ordered list",
			"<ol><li>first</li><li>second</li></ol>",
			"1. first\n2. second",
		},
		{
			"paragraph collapse",
			"<p>a</p><p></p><p>b</p>",
			"a\n\nb",
		},
		{
			"table",
			"<table><tr><th>A</th><th>B</th></tr><tr><td>1</td><td>2</td></tr></table>",
			"| A | B |\n| --- | --- |\n| 1 | 2 |",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := map[string]any{"s": tc.in}
			if got := expand(t, e, "{{string.htmlToMarkdown s}}", data); got != tc.want {
				t.Errorf("htmlToMarkdown(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStringMarkdown(t *testing.T) {
	e := newTestEngine(t)
	data := map[string]any{"s": "# Title\n\nsome *emphasis*"}
	got := expand(t, e, "{{string.markdown s}}", data)
	if !strings.Contains(got, "<h1") || !strings.Contains(got, "<em>emphasis</em>") {
		t.Errorf("markdown helper produced unexpected HTML: %q", got)
	}
}

func TestMathHelpers(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		source, want string
	}{
		{"{{add 2 3}}", "5"},
		{"{{add 1 2 3 4}}", "10"},
		{"{{sub 10 4}}", "6"},
		{"{{mult 6 7}}", "42"},
		{"{{div 10 4}}", "2.5"},
		{"{{div 1 0}}", "0"}, // division by zero degrades to 0
		{"{{mod 10 3}}", "1"},
		{"{{mod 1 0}}", "0"},
		{"{{min 3 7}}", "3"},
		{"{{max 3 7}}", "7"},
		{"{{inc 41}}", "42"},
		{"{{dec 43}}", "42"},
	}
	for _, tc := range cases {
		if got := expand(t, e, tc.source, nil); got != tc.want {
			t.Errorf("expand(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestLogicHelpers(t *testing.T) {
	e := newTestEngine(t)
	data := map[string]any{"n": 5, "s": "text", "empty": ""}

	cases := []struct {
		source, want string
	}{
		{"{{eq n 5}}", "true"},
		{"{{eq s \"text\"}}", "true"},
		{"{{ne n 5}}", "false"},
		{"{{lt n 10}}", "true"},
		{"{{le n 5}}", "true"},
		{"{{gt n 10}}", "false"},
		{"{{ge n 5}}", "true"},
		{"{{and n s}}", "true"},
		{"{{and n empty}}", "false"},
		{"{{or empty s}}", "true"},
		{"{{not empty}}", "true"},
		{"{{isSet n}}", "true"},
		{"{{isSet missing.path}}", "false"},
	}
	for _, tc := range cases {
		if got := expand(t, e, tc.source, data); got != tc.want {
			t.Errorf("expand(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestStringReplaceAndTrim(t *testing.T) {
	e := newTestEngine(t)
	if got := expand(t, e, `{{string.replace "a-b-c" "-" "+"}}`, nil); got != "a+b+c" {
		t.Errorf("replace failed: %q", got)
	}
	if got := expand(t, e, `{{string.trim "  padded  "}}`, nil); got != "padded" {
		t.Errorf("trim failed: %q", got)
	}
}
