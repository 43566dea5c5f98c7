package cpp

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/ousttrue/pycpptool/internal/decl"
	"github.com/ousttrue/pycpptool/internal/source"
)

// Parser turns one header at a time into declaration cursors. It owns a
// tree-sitter parser instance and is not safe for concurrent use; each
// generation run constructs its own.
type Parser struct {
	parser *sitter.Parser
	noise  map[string]struct{}
	consts map[string]int64
}

// NewParser creates a front end. extraNoise lists additional macro
// identifiers to blank before parsing, on top of the built-in tables.
func NewParser(extraNoise []string) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	noise := make(map[string]struct{}, len(extraNoise))
	for _, w := range extraNoise {
		noise[w] = struct{}{}
	}
	return &Parser{
		parser: p,
		noise:  noise,
		consts: make(map[string]int64),
	}
}

// Close releases the underlying parser.
func (p *Parser) Close() {
	p.parser.Close()
}

// Result carries the cursors extracted from one header.
type Result struct {
	Cursors []decl.Cursor
	// Skipped counts regions the grammar could not make sense of.
	Skipped int
}

// ParseHeader parses the file's content into declaration cursors.
// Constant folding state (macros, enumerators) accumulates across calls
// so a header can use names its includes defined, provided the includes
// were parsed first.
func (p *Parser) ParseHeader(ctx context.Context, f *source.File) (Result, error) {
	pre := preprocess(f.Content, p.noise)
	tree, err := p.parser.ParseCtx(ctx, nil, pre.src)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	defer tree.Close()

	ex := &extractor{
		src:    pre.src,
		file:   f.ID,
		ann:    pre.ann,
		consts: p.consts,
	}
	cursors := ex.extract(tree.RootNode())
	return Result{Cursors: cursors, Skipped: ex.skipped}, nil
}
