package handlebars

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenQuoted
	tokenSubexpr
)

type argToken struct {
	kind tokenKind
	text string
}

// tokenizeArgs splits an expression into argument tokens. Unquoted
// whitespace separates tokens; single- and double-quoted spans are atomic
// and may contain the other quote character unescaped; parenthesized spans
// become subexpression tokens with balanced nesting (quotes inside them are
// respected when counting parens).
func tokenizeArgs(s string) []argToken {
	var tokens []argToken
	i := 0
	for i < len(s) {
		c := s[i]

		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			i++
			continue
		}

		if c == '\'' || c == '"' {
			quote := c
			j := i + 1
			for j < len(s) && s[j] != quote {
				j++
			}
			tokens = append(tokens, argToken{kind: tokenQuoted, text: s[i+1 : min(j, len(s))]})
			if j < len(s) {
				j++
			}
			i = j
			continue
		}

		if c == '(' {
			depth := 1
			var quote byte
			j := i + 1
			for j < len(s) {
				cj := s[j]
				if quote != 0 {
					if cj == quote {
						quote = 0
					}
					j++
					continue
				}
				switch cj {
				case '\'', '"':
					quote = cj
				case '(':
					depth++
				case ')':
					depth--
					if depth == 0 {
						tokens = append(tokens, argToken{kind: tokenSubexpr, text: s[i+1 : j]})
					}
				}
				j++
				if depth == 0 {
					break
				}
			}
			if depth != 0 {
				// Unbalanced parens: take the rest as the subexpression.
				tokens = append(tokens, argToken{kind: tokenSubexpr, text: s[i+1:]})
				j = len(s)
			}
			i = j
			continue
		}

		j := i
		for j < len(s) {
			cj := s[j]
			if cj == ' ' || cj == '\t' || cj == '\r' || cj == '\n' || cj == '(' || cj == '\'' || cj == '"' {
				break
			}
			j++
		}
		tokens = append(tokens, argToken{kind: tokenWord, text: s[i:j]})
		i = j
	}
	return tokens
}
