package ddl

import (
	"strings"
)

// stripComments removes -- line comments and /* */ block comments outside quoted text.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				if i+1 < len(s) && s[i+1] == quote {
					b.WriteByte(s[i+1])
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte('\n')
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// balanced reports whether parentheses are balanced and every quote is closed.
func balanced(s string) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				if i+1 < len(s) && s[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0 && quote == 0
}

// splitTopLevel splits s on sep where sep is outside quotes and parentheses.
// Parts are trimmed and empty parts dropped.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				if i+1 < len(s) && s[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				if p := strings.TrimSpace(s[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

// tokenize splits a clause into words, quoted strings and parenthesized groups.
// A group always forms its own token, so "VARCHAR(50)" yields "VARCHAR" and "(50)".
// Top-level commas become "," tokens.
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}

	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == quote {
				if i+1 < len(s) && s[i+1] == quote {
					cur.WriteByte(s[i+1])
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		if depth > 0 {
			cur.WriteByte(c)
			switch c {
			case '\'', '"', '`':
				quote = c
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					flush()
				}
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			cur.WriteByte(c)
		case c == '(':
			flush()
			depth = 1
			cur.WriteByte(c)
		case c == ',':
			flush()
			toks = append(toks, ",")
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return toks
}

func isGroup(tok string) bool {
	return strings.HasPrefix(tok, "(") && strings.HasSuffix(tok, ")")
}

// groupItems returns the comma-separated items inside a "( ... )" token.
func groupItems(tok string) []string {
	if !isGroup(tok) {
		return nil
	}
	return splitTopLevel(tok[1:len(tok)-1], ',')
}

// identList turns a "(a, "B", c DESC)" group into bare identifiers.
func identList(tok string) []string {
	items := groupItems(tok)
	out := make([]string, 0, len(items))
	for _, item := range items {
		parts := tokenize(item)
		if len(parts) == 0 {
			continue
		}
		if len(parts) > 1 && isGroup(parts[1]) {
			// expression index such as lower(email)
			out = append(out, strings.Join(strings.Fields(item), ""))
			continue
		}
		out = append(out, unquoteIdent(parts[0]))
	}
	return out
}

// unquoteIdent strips quoting and any schema qualification from an identifier.
func unquoteIdent(tok string) string {
	parts := splitTopLevelQuoted(tok, '.')
	last := strings.TrimSpace(parts[len(parts)-1])
	return stripIdentQuotes(last)
}

// qualifiedParts splits a possibly qualified identifier into its unquoted parts.
func qualifiedParts(tok string) []string {
	parts := splitTopLevelQuoted(tok, '.')
	for i, p := range parts {
		parts[i] = stripIdentQuotes(strings.TrimSpace(p))
	}
	return parts
}

func stripIdentQuotes(s string) string {
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"':
			return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
		case s[0] == '`' && s[len(s)-1] == '`':
			return s[1 : len(s)-1]
		case s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return s
}

// splitTopLevelQuoted splits on sep outside of identifier quotes.
func splitTopLevelQuoted(s string, sep byte) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '`':
			quote = c
		case '[':
			quote = ']'
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// unquoteString returns the content of a '...' literal, or s unchanged.
func unquoteString(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

func upper(tok string) string {
	return strings.ToUpper(tok)
}
