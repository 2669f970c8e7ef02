package hashing

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenCounter is the real-BPE Tokenizer implementation both the
// Chunker and Packer use, grounded on Tangerg/lynx/ai/tokenizer's
// cl100k_base wrapper, since a len(s)/4 heuristic would under/over-pack
// prompts.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter builds a counter using the given tiktoken encoding
// name (e.g. tiktoken.MODEL_CL100K_BASE).
func NewTiktokenCounter(encodingName string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("hashing: load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

func (c *TiktokenCounter) CountTokens(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// PackableDocument is one candidate document in reranked order, ready to be
// included in a prompt if the budget allows.
type PackableDocument struct {
	ID   int64
	Text string
}

// Packer fits as many leading PackableDocuments (in the caller's ranked
// order) as possible into a model's context window.
type Packer struct {
	tokenizer Tokenizer
}

// NewPacker builds a Packer counting tokens with tokenizer.
func NewPacker(tokenizer Tokenizer) *Packer {
	return &Packer{tokenizer: tokenizer}
}

// Pack returns the longest prefix of docs (in the given order) whose total
// token count, plus base and reservedOutput, fits within contextWindow. It
// binary-searches the prefix length rather than scanning linearly, since
// the reranked ordering is already the priority the caller wants preserved
// and this step runs on every query, so the binary search matters.
func (p *Packer) Pack(base string, docs []PackableDocument, contextWindow, reservedOutput int) []PackableDocument {
	budget := contextWindow - reservedOutput - p.tokenizer.CountTokens(base)
	if budget <= 0 || len(docs) == 0 {
		return nil
	}

	fits := func(n int) bool {
		total := 0
		for i := 0; i < n; i++ {
			total += p.tokenizer.CountTokens(docs[i].Text)
			if total > budget {
				return false
			}
		}
		return true
	}

	lo, hi := 0, len(docs)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if fits(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return docs[:lo]
}
