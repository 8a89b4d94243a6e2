// Package template implements the small placeholder language used for file
// sink path and line patterns: literal text interleaved with dotted-path
// record lookups in {curly.braces}.
package template

import (
	"errors"
	"strings"

	"zenlogd/pkg/record"
)

// ErrEofInsidePlaceholder is returned when a template ends before its
// closing brace.
var ErrEofInsidePlaceholder = errors.New("template: end of input inside placeholder")

// ErrKeyNotFound is returned by Evaluate when a placeholder's dotted path
// does not resolve against the given record.
type ErrKeyNotFound string

func (e ErrKeyNotFound) Error() string { return "template: key not found: " + string(e) }

// ErrTypeMismatch is returned by Evaluate when a placeholder resolves to an
// array or object, which has no natural string projection.
var ErrTypeMismatch = record.ErrTypeMismatch

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenPlaceholder
)

// Token is one literal run or one dotted lookup path.
type Token struct {
	kind    tokenKind
	literal string
	path    []string
}

// Generator holds a template's tokenized form. Parse caches the result: a
// broken parse is sticky, and a successful parse can be Evaluated any
// number of times against different records.
type Generator struct {
	tokens   []Token
	parseErr error
}

// Parse tokenizes src once. A template that ends inside a placeholder is
// permanently broken: Evaluate on a broken Generator always returns
// ErrEofInsidePlaceholder without re-scanning.
func Parse(src string) (*Generator, error) {
	tokens, err := tokenize(src)
	g := &Generator{tokens: tokens, parseErr: err}
	if err != nil {
		return g, err
	}
	return g, nil
}

func tokenize(src string) ([]Token, error) {
	var tokens []Token
	runes := []rune(src)
	i := 0
	n := len(runes)

	for i < n {
		if runes[i] != '{' {
			start := i
			for i < n && runes[i] != '{' {
				i++
			}
			tokens = append(tokens, Token{kind: tokenLiteral, literal: string(runes[start:i])})
			continue
		}

		// runes[i] == '{'
		i++ // consume '{'
		start := i
		for i < n && runes[i] != '}' {
			i++
		}
		if i >= n {
			return nil, ErrEofInsidePlaceholder
		}
		path := strings.Split(string(runes[start:i]), ".")
		tokens = append(tokens, Token{kind: tokenPlaceholder, path: path})
		i++ // consume '}'
	}

	return tokens, nil
}

// Evaluate walks the cached tokens against rec, concatenating literal runs
// and the natural-string projection of each placeholder's resolved value.
func (g *Generator) Evaluate(rec *record.Record) ([]byte, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}

	var buf strings.Builder
	for _, tok := range g.tokens {
		switch tok.kind {
		case tokenLiteral:
			buf.WriteString(tok.literal)
		case tokenPlaceholder:
			cur := rec
			for _, key := range tok.path {
				next, ok := cur.Lookup(key)
				if !ok {
					return nil, ErrKeyNotFound(strings.Join(tok.path, "."))
				}
				cur = next
			}
			s, err := cur.NaturalString()
			if err != nil {
				return nil, err
			}
			buf.WriteString(s)
		}
	}
	return []byte(buf.String()), nil
}
