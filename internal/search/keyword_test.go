package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDropsShortAndStopWords(t *testing.T) {
	tokens := Tokenize("the agent je close-ovao tiket nakon rg1 macro-a", 15)
	assert.Equal(t, []string{"close", "ovao", "tiket", "rg1", "macro"}, tokens)
}

func TestTokenizeKeepsAccentedLetters(t *testing.T) {
	tokens := Tokenize("pogrešno označio žalbu korisnika", 15)
	assert.Equal(t, []string{"pogrešno", "označio", "žalbu", "korisnika"}, tokens)
}

func TestTokenizeCapsTokenCountInOrder(t *testing.T) {
	words := []string{
		"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf",
		"hotel", "india", "juliet", "kilo", "lima", "mike", "november",
		"oscar", "papa", "quebec",
	}
	tokens := Tokenize(strings.Join(words, " "), 15)
	assert.Len(t, tokens, 15)
	assert.Equal(t, "alpha", tokens[0])
	assert.Equal(t, "oscar", tokens[14])
}

func TestTokenizeEmptyAndMarkupInput(t *testing.T) {
	assert.Empty(t, Tokenize("", 15))
	assert.Empty(t, Tokenize("<p>   </p>", 15))
	assert.Equal(t, []string{"refund", "delayed"}, Tokenize("<b>refund</b> was delayed", 15))
}
