package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

const maxWordChars = 100

// Tokenizer performs BERT-style WordPiece tokenization against a
// HuggingFace tokenizer.json vocabulary.
type Tokenizer struct {
	vocab map[string]int
	cls   int
	sep   int
	unk   int
	pad   int
}

// LoadTokenizer reads the vocabulary from a tokenizer.json file.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tokenizerData struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &tokenizerData); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(tokenizerData.Model.Vocab) == 0 {
		return nil, fmt.Errorf("%s: empty vocabulary", path)
	}

	return NewTokenizer(tokenizerData.Model.Vocab), nil
}

// NewTokenizer builds a tokenizer from an in-memory vocabulary.
func NewTokenizer(vocab map[string]int) *Tokenizer {
	lookup := func(token string, fallback int) int {
		if id, ok := vocab[token]; ok {
			return id
		}
		return fallback
	}
	return &Tokenizer{
		vocab: vocab,
		cls:   lookup("[CLS]", 101),
		sep:   lookup("[SEP]", 102),
		unk:   lookup("[UNK]", 100),
		pad:   lookup("[PAD]", 0),
	}
}

// Encode tokenizes text into a fixed-length sequence wrapped in [CLS] and
// [SEP], truncated and padded to maxLen. It returns input ids and the
// attention mask.
func (t *Tokenizer) Encode(text string, maxLen int) (ids []int64, mask []int64) {
	tokens := t.Tokenize(text)
	if len(tokens) > maxLen-2 {
		tokens = tokens[:maxLen-2]
	}

	ids = make([]int64, maxLen)
	mask = make([]int64, maxLen)
	for i := range ids {
		ids[i] = int64(t.pad)
	}

	ids[0] = int64(t.cls)
	mask[0] = 1
	for i, tok := range tokens {
		ids[i+1] = tok
		mask[i+1] = 1
	}
	end := len(tokens) + 1
	ids[end] = int64(t.sep)
	mask[end] = 1
	return ids, mask
}

// Tokenize converts text to WordPiece token ids without special tokens.
func (t *Tokenizer) Tokenize(text string) []int64 {
	var tokens []int64
	for _, word := range basicSplit(strings.ToLower(text)) {
		for _, piece := range t.wordPiece(word) {
			if id, ok := t.vocab[piece]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, int64(t.unk))
			}
		}
	}
	return tokens
}

// basicSplit splits on whitespace and isolates punctuation runes.
func basicSplit(text string) []string {
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}

// wordPiece greedily matches the longest vocabulary prefix.
func (t *Tokenizer) wordPiece(word string) []string {
	if len([]rune(word)) > maxWordChars {
		return []string{"[UNK]"}
	}

	var pieces []string
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := len(runes)
		match := ""
		for end > start {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}
			if _, ok := t.vocab[candidate]; ok {
				match = candidate
				break
			}
			end--
		}
		if match == "" {
			return []string{"[UNK]"}
		}
		pieces = append(pieces, match)
		start = end
	}
	return pieces
}
