// Package stringutil contains string helpers shared by config keys
// and collection names.
package stringutil

import (
	"strings"
	"unicode"
)

// UnCamelCase separates a camel-cased string into its words.
// Multiple uppercase characters together are treated as a single
// word (e.g. TESTFoo is interpreted as the words 'TEST' and 'Foo',
// while FooBAR is intepreted as 'Foo' and 'BAR').
func UnCamelCase(s string) []string {
	runes := []rune(s)
	ls := len(runes)
	switch ls {
	case 0:
		return nil
	case 1:
		return []string{s}
	}
	var words []string
	idx := 0
	for ii, v := range runes[1 : ls-1] {
		if unicode.IsUpper(v) && (unicode.IsLower(runes[ii+2]) || unicode.IsLower(runes[ii])) {
			n := ii + 1
			words = append(words, string(runes[idx:n]))
			idx = n
		}
	}
	return append(words, string(runes[idx:]))
}

// CamelCaseToLower transforms a camel-cased string into a
// lowercase string, separating the words with sep. e.g.
// FooBar with '_' as sep becomes foo_bar.
func CamelCaseToLower(s string, sep string) string {
	words := UnCamelCase(s)
	for ii, v := range words {
		words[ii] = strings.ToLower(v)
	}
	return strings.Join(words, sep)
}

// SplitQuoted splits s at every sep which is not enclosed in single
// or double quotes. Surrounding whitespace is removed from each part,
// but quotes are preserved. See Unquote.
func SplitQuoted(s string, sep rune) []string {
	var parts []string
	var quote rune
	start := 0
	for ii, v := range s {
		switch {
		case quote != 0:
			if v == quote {
				quote = 0
			}
		case v == '\'' || v == '"':
			quote = v
		case v == sep:
			parts = append(parts, strings.TrimSpace(s[start:ii]))
			start = ii + len(string(sep))
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// Unquote removes a pair of matching single or double quotes
// around s, if present.
func Unquote(s string) string {
	if n := len(s); n >= 2 && (s[0] == '\'' || s[0] == '"') && s[n-1] == s[0] {
		return s[1 : n-1]
	}
	return s
}
