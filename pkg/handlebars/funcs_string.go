package handlebars

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// argsText implements the concatenation convention: helpers that operate on
// "the text" accept one or more arguments and join them before transforming,
// so templates can build the working string from mixed literals and
// variables in one call.
func argsText(args []any) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(stringify(a))
	}
	return b.String()
}

func stringLength(_ context.Context, _ *State, args []any) (any, error) {
	return utf8.RuneCountInString(argsText(args)), nil
}

func stringLowercase(_ context.Context, _ *State, args []any) (any, error) {
	return strings.ToLower(argsText(args)), nil
}

func stringUppercase(_ context.Context, _ *State, args []any) (any, error) {
	return strings.ToUpper(argsText(args)), nil
}

func stringTrim(_ context.Context, _ *State, args []any) (any, error) {
	return strings.TrimSpace(argsText(args)), nil
}

// stringReplace replaces every occurrence of old with new in text. It takes
// exactly three positional arguments and does not concatenate.
func stringReplace(_ context.Context, _ *State, args []any) (any, error) {
	if len(args) < 3 {
		return argsText(args), nil
	}
	return strings.ReplaceAll(stringify(args[0]), stringify(args[1]), stringify(args[2])), nil
}

// stringTitlecase capitalizes each major word. Words on the configured
// small-word list stay lowercase unless they are the first or last word,
// which are always capitalized.
func stringTitlecase(_ context.Context, st *State, args []any) (any, error) {
	words := strings.Fields(argsText(args))
	if len(words) == 0 {
		return "", nil
	}

	small := make(map[string]struct{})
	for _, w := range st.Config().SmallWords {
		small[strings.ToLower(w)] = struct{}{}
	}

	for i, w := range words {
		lower := strings.ToLower(w)
		_, isSmall := small[lower]
		if isSmall && i != 0 && i != len(words)-1 {
			words[i] = lower
			continue
		}
		words[i] = capitalizeWord(lower)
	}
	return strings.Join(words, " "), nil
}

func capitalizeWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

// slugTransformer strips combining marks after NFD decomposition, folding
// diacritics to their base letters.
var slugTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stringSlugify lowercases, folds diacritics, replaces runs of
// non-alphanumeric characters with a single hyphen and trims leading and
// trailing hyphens.
func stringSlugify(_ context.Context, _ *State, args []any) (any, error) {
	text := strings.ToLower(argsText(args))
	if folded, _, err := transform.String(slugTransformer, text); err == nil {
		text = folded
	}

	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-"), nil
}

func stringEncodeURL(_ context.Context, _ *State, args []any) (any, error) {
	return url.QueryEscape(argsText(args)), nil
}

// stringDecodeURL percent-decodes its input. An invalid escape sequence
// returns the original input unchanged rather than failing.
func stringDecodeURL(_ context.Context, _ *State, args []any) (any, error) {
	text := argsText(args)
	decoded, err := url.QueryUnescape(text)
	if err != nil {
		return text, nil
	}
	return decoded, nil
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func stringEncodeHTML(_ context.Context, _ *State, args []any) (any, error) {
	return htmlEscaper.Replace(argsText(args)), nil
}

// stringMarkdown renders Markdown source to HTML.
func stringMarkdown(_ context.Context, _ *State, args []any) (any, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(argsText(args)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
