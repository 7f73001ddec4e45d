package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "I enjoy coffee", []string{"i", "enjoy", "coffee"}},
		{"punctuation", "Coffee, tea; and... WATER!", []string{"coffee", "tea", "and", "water"}},
		{"digits", "route 66", []string{"route", "66"}},
		{"fold", "CAFÉ Café", []string{"café", "café"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.in))
		})
	}
}

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"drops stop words", "what about the coffee", []string{"coffee"}},
		{"dedupes", "coffee Coffee COFFEE", []string{"coffee"}},
		{"only stop words", "to be", []string{"to", "be"}},
		{"empty", "  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryTerms(tt.query))
		})
	}
}

func TestLexicalScore(t *testing.T) {
	terms := map[string]bool{"coffee": true, "tea": true}

	assert.Equal(t, 0, lexicalScore("Weather is nice", terms))
	assert.Equal(t, 1, lexicalScore("I enjoy coffee", terms))
	assert.Equal(t, 3, lexicalScore("Tea or coffee? COFFEE.", terms))
	assert.Equal(t, 0, lexicalScore("coffeehouse", terms))
}
