package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Special token IDs shared by the uncased BERT vocabularies.
const (
	unkID = 100
	clsID = 101
	sepID = 102
)

// Tokenizer is a lower-casing WordPiece tokenizer driven by the vocab in a
// Hugging Face tokenizer.json.
type Tokenizer struct {
	vocab map[string]int64
}

// LoadTokenizer reads the vocab from a tokenizer.json file.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}

	var file struct {
		Model struct {
			Vocab map[string]int64 `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("parse tokenizer: empty vocab")
	}
	return NewTokenizer(file.Model.Vocab), nil
}

// NewTokenizer builds a tokenizer from an in-memory vocab.
func NewTokenizer(vocab map[string]int64) *Tokenizer {
	return &Tokenizer{vocab: vocab}
}

// Encode returns [CLS] tokens... [SEP], truncated to maxLen IDs.
func (t *Tokenizer) Encode(text string, maxLen int) []int64 {
	ids := []int64{clsID}
	for _, word := range splitWords(text) {
		for _, id := range t.wordPiece(word) {
			if len(ids) == maxLen-1 {
				return append(ids, sepID)
			}
			ids = append(ids, id)
		}
	}
	return append(ids, sepID)
}

// wordPiece splits word greedily into the longest known prefixes.
// A word with any unknown piece maps to a single [UNK].
func (t *Tokenizer) wordPiece(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}

	var ids []int64
	runes := []rune(word)
	for start := 0; start < len(runes); {
		end := len(runes)
		var id int64
		found := false
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, found = t.vocab[piece]; found {
				break
			}
		}
		if !found {
			return []int64{unkID}
		}
		ids = append(ids, id)
		start = end
	}
	return ids
}

// splitWords lower-cases text and splits on whitespace, emitting each
// punctuation rune as its own word.
func splitWords(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
