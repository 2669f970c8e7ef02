package hashing

import "testing"

// wordCountTokenizer is a deterministic test double: one token per
// whitespace-separated word, avoiding a real tiktoken dependency in tests.
type wordCountTokenizer struct{}

func (wordCountTokenizer) CountTokens(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

func TestPackerFitsLeadingPrefixWithinBudget(t *testing.T) {
	p := NewPacker(wordCountTokenizer{})
	docs := []PackableDocument{
		{ID: 1, Text: "one two three"},
		{ID: 2, Text: "four five"},
		{ID: 3, Text: "six seven eight nine"},
	}
	// budget = contextWindow(10) - reservedOutput(0) - base(0) = 10 tokens.
	// doc1=3, doc1+doc2=5, doc1+doc2+doc3=9 -> all three fit.
	packed := p.Pack("", docs, 10, 0)
	if len(packed) != 3 {
		t.Fatalf("expected all 3 docs to fit in budget 10, got %d", len(packed))
	}
}

func TestPackerStopsAtFirstDocThatOverflows(t *testing.T) {
	p := NewPacker(wordCountTokenizer{})
	docs := []PackableDocument{
		{ID: 1, Text: "one two three"},
		{ID: 2, Text: "four five six seven eight"},
		{ID: 3, Text: "nine"},
	}
	// budget = 5 tokens. doc1=3 fits, doc1+doc2=8 doesn't.
	packed := p.Pack("", docs, 5, 0)
	if len(packed) != 1 {
		t.Fatalf("expected exactly 1 doc to fit in budget 5, got %d", len(packed))
	}
	if packed[0].ID != 1 {
		t.Fatalf("expected doc 1 to be kept, got %d", packed[0].ID)
	}
}

func TestPackerReturnsEmptyWhenBudgetExhaustedByBase(t *testing.T) {
	p := NewPacker(wordCountTokenizer{})
	docs := []PackableDocument{{ID: 1, Text: "one"}}
	packed := p.Pack("base prompt text consuming the whole window", docs, 5, 0)
	if len(packed) != 0 {
		t.Fatalf("expected no docs to fit once base exhausts budget, got %d", len(packed))
	}
}

func TestPackerReturnsEmptyForNoCandidates(t *testing.T) {
	p := NewPacker(wordCountTokenizer{})
	packed := p.Pack("", nil, 100, 0)
	if len(packed) != 0 {
		t.Fatalf("expected empty result for no candidate docs, got %d", len(packed))
	}
}
