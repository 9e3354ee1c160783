// # internal/engine/parser/pool.go
package parser

import (
	"sync"
	"sync/atomic"

	"sfclink/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// grammarPool hands out tree-sitter parsers bound to one grammar. A parser
// is never shared between two in-flight file transforms.
type grammarPool struct {
	lang    Language
	grammar *sitter.Language
	free    sync.Pool
	inUse   atomic.Int64
}

func newGrammarPool(lang Language, grammar *sitter.Language) *grammarPool {
	gp := &grammarPool{lang: lang, grammar: grammar}
	gp.free.New = func() any {
		return sitter.NewParser()
	}
	return gp
}

// acquire returns a parser configured for the pool's grammar. Pair every call
// with release.
func (gp *grammarPool) acquire() *sitter.Parser {
	sp := gp.free.Get().(*sitter.Parser)
	// SetLanguage is cheap and covers parsers that were Reset by a caller.
	_ = sp.SetLanguage(gp.grammar)
	gp.inUse.Add(1)
	observability.ParsersInUse.WithLabelValues(string(gp.lang)).Inc()
	return sp
}

// release drops any retained tree state and makes sp available again.
func (gp *grammarPool) release(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	gp.inUse.Add(-1)
	observability.ParsersInUse.WithLabelValues(string(gp.lang)).Dec()
	sp.Reset()
	gp.free.Put(sp)
}

func (gp *grammarPool) checkedOut() int {
	return int(gp.inUse.Load())
}
