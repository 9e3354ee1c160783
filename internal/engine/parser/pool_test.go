package parser

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsPool(t *testing.T) *grammarPool {
	t.Helper()
	grammar, ok := NewGrammarLoader().Language(JavaScript)
	require.True(t, ok)
	return newGrammarPool(JavaScript, grammar)
}

func TestGrammarPool_AcquireRelease(t *testing.T) {
	gp := jsPool(t)

	first := gp.acquire()
	second := gp.acquire()
	require.NotNil(t, first)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, gp.checkedOut())

	gp.release(first)
	gp.release(second)
	assert.Equal(t, 0, gp.checkedOut())

	gp.release(nil)
	assert.Equal(t, 0, gp.checkedOut())
}

func TestGrammarPool_RestoresGrammarAfterReset(t *testing.T) {
	gp := jsPool(t)

	sp := gp.acquire()
	sp.Reset()
	gp.release(sp)

	sp = gp.acquire()
	defer gp.release(sp)
	tree := sp.Parse([]byte("import { a } from './a.js'\nexport default a\n"), nil)
	require.NotNil(t, tree)
	defer tree.Close()
	assert.False(t, tree.RootNode().HasError())
}

func TestParser_ConcurrentParsesReturnParsers(t *testing.T) {
	p := newTestParser()
	src := []byte("export const run = () => 1\n")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tree, err := p.Parse(context.Background(), JavaScript, "run.js", src)
				if !assert.NoError(t, err) {
					return
				}
				tree.Close()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, p.pools[JavaScript].checkedOut())
}
