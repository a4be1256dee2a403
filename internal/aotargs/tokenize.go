// Package aotargs splits the comma-joined option string the Mono AOT compiler
// accepts (--aot=opt1,opt2,...) into individual options.
package aotargs

import "strings"

type state int

const (
	stateDefault state = iota
	stateQuoted
	stateEscape
)

// Tokenize splits input on commas that are neither quoted nor escaped.
// Tokens keep their original characters, including quotes and backslashes,
// so Join(Tokenize(s)) reproduces s minus any empty segments.
func Tokenize(input string) []string {
	var (
		tokens []string
		cur    strings.Builder
		st     = stateDefault
		resume = stateDefault
	)

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range input {
		switch st {
		case stateEscape:
			cur.WriteRune(r)
			st = resume
			continue
		case stateQuoted:
			switch r {
			case '\\':
				resume, st = stateQuoted, stateEscape
			case '"':
				st = stateDefault
			}
			cur.WriteRune(r)
		default:
			switch r {
			case ',':
				flush()
				continue
			case '\\':
				resume, st = stateDefault, stateEscape
			case '"':
				st = stateQuoted
			}
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// Join is the inverse of Tokenize for a list of already-escaped options.
func Join(tokens []string) string {
	return strings.Join(tokens, ",")
}

// SplitOption splits "name=value" into its parts. ok is false for bare flags.
func SplitOption(opt string) (name, value string, ok bool) {
	return strings.Cut(opt, "=")
}

// IsQuoted reports whether s is wrapped in a pair of double quotes.
func IsQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

// Unquote strips one pair of surrounding double quotes, if present, and
// resolves the backslash escapes inside them. Unquoted input is returned as is.
func Unquote(s string) string {
	if !IsQuoted(s) {
		return s
	}
	inner := s[1 : len(s)-1]
	if !strings.Contains(inner, `\`) {
		return inner
	}
	var b strings.Builder
	b.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Quote wraps s in double quotes, escaping backslashes and quotes, so that
// Tokenize keeps it as one option and Unquote restores s.
func Quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}

// Option is one tokenized option with its name and unquoted value.
type Option struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Parse tokenizes input and splits every option into name and value.
func Parse(input string) []Option {
	tokens := Tokenize(input)
	out := make([]Option, 0, len(tokens))
	for _, tok := range tokens {
		name, value, _ := SplitOption(tok)
		out = append(out, Option{Token: tok, Name: name, Value: Unquote(value)})
	}
	return out
}
