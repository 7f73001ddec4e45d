package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Stop words dropped from lexical queries
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "about": true,
}

// tokenize splits text at non-alphanumeric runes and case-folds each token.
// A Caser is stateful, so each call builds its own.
func tokenize(text string) []string {
	folder := cases.Fold()
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, folder.String(f))
	}
	return tokens
}

// queryTerms returns the distinct folded query tokens without stop words.
// A query made only of stop words keeps them.
func queryTerms(query string) []string {
	tokens := tokenize(query)
	seen := make(map[string]bool, len(tokens))
	var terms, all []string
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		all = append(all, tok)
		if !stopWords[tok] {
			terms = append(terms, tok)
		}
	}
	if len(terms) == 0 {
		return all
	}
	return terms
}

// lexicalScore counts occurrences of any term among the tokens of content.
func lexicalScore(content string, terms map[string]bool) int {
	score := 0
	for _, tok := range tokenize(content) {
		if terms[tok] {
			score++
		}
	}
	return score
}
