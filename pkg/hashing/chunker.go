package hashing

import (
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Tokenizer counts tokens in a string; both Chunker implementations use it
// to keep chunks near a target size without depending on a model call.
type Tokenizer interface {
	CountTokens(text string) int
}

// ChunkOptions configures a Chunker call. Language is a lowercase hint
// ("go", "python", "javascript", "typescript", "rust", or "" for prose) —
// StructuralChunker falls back to paragraph splitting for anything it
// doesn't recognize.
type ChunkOptions struct {
	Language     string
	TargetTokens int
	Tokenizer    Tokenizer
}

// Chunker splits a document's canonical text into ordinal-ordered pieces
// ready for embedding and storage as Chunk rows.
type Chunker interface {
	Chunk(ctx context.Context, content string, opts ChunkOptions) ([]string, error)
}

// treeSitterLanguage resolves a language hint to its tree-sitter grammar.
func treeSitterLanguage(lang string) *sitter.Language {
	switch lang {
	case "go", "golang":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "rust":
		return rust.GetLanguage()
	default:
		return nil
	}
}

// StructuralChunker splits source-shaped content on top-level declaration
// boundaries (functions, classes, impls) using go-tree-sitter, falling back
// to ParagraphChunker when the language isn't recognized or parsing fails.
type StructuralChunker struct {
	fallback *ParagraphChunker
}

// NewStructuralChunker builds a StructuralChunker with a ParagraphChunker
// fallback for prose and unsupported languages.
func NewStructuralChunker() *StructuralChunker {
	return &StructuralChunker{fallback: NewParagraphChunker()}
}

func (c *StructuralChunker) Chunk(ctx context.Context, content string, opts ChunkOptions) ([]string, error) {
	lang := treeSitterLanguage(opts.Language)
	if lang == nil {
		return c.fallback.Chunk(ctx, content, opts)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, []byte(content))
	if err != nil {
		return c.fallback.Chunk(ctx, content, opts)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || int(root.ChildCount()) == 0 {
		return c.fallback.Chunk(ctx, content, opts)
	}

	src := []byte(content)
	var chunks []string
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		text := strings.TrimSpace(child.Content(src))
		if text == "" {
			continue
		}
		chunks = append(chunks, text)
	}
	if len(chunks) == 0 {
		return c.fallback.Chunk(ctx, content, opts)
	}
	return mergeSmallChunks(chunks, opts), nil
}

// mergeSmallChunks coalesces consecutive top-level declarations (import
// blocks, single-line consts) into their neighbor so a chunk never falls
// far below TargetTokens, when a tokenizer is configured.
func mergeSmallChunks(chunks []string, opts ChunkOptions) []string {
	if opts.Tokenizer == nil || opts.TargetTokens <= 0 {
		return chunks
	}
	minTokens := opts.TargetTokens / 4
	out := make([]string, 0, len(chunks))
	var pending string
	for _, c := range chunks {
		if pending == "" {
			pending = c
		} else {
			pending = pending + "\n\n" + c
		}
		if opts.Tokenizer.CountTokens(pending) >= minTokens {
			out = append(out, pending)
			pending = ""
		}
	}
	if pending != "" {
		out = append(out, pending)
	}
	return out
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// ParagraphChunker greedily packs paragraphs into chunks up to
// opts.TargetTokens, splitting prose on blank lines.
type ParagraphChunker struct{}

func NewParagraphChunker() *ParagraphChunker {
	return &ParagraphChunker{}
}

func (c *ParagraphChunker) Chunk(_ context.Context, content string, opts ChunkOptions) ([]string, error) {
	paragraphs := paragraphSplit.Split(content, -1)
	target := opts.TargetTokens
	if target <= 0 {
		target = 400
	}

	var chunks []string
	var current strings.Builder
	currentTokens := 0
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tokens := estimateTokens(opts.Tokenizer, p)
		if currentTokens > 0 && currentTokens+tokens > target {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
		currentTokens += tokens
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	if len(chunks) == 0 {
		return []string{strings.TrimSpace(content)}, nil
	}
	return chunks, nil
}

func estimateTokens(t Tokenizer, text string) int {
	if t != nil {
		return t.CountTokens(text)
	}
	return len(text) / 4
}
