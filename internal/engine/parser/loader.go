// # internal/engine/parser/loader.go
package parser

import (
	"path"
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

type Language string

const (
	JavaScript Language = "javascript"
	HTML       Language = "html"
	CSS        Language = "css"
)

// GrammarLoader owns the compiled-in grammars used by the linker and the SFC compiler.
type GrammarLoader struct {
	languages map[Language]*sitter.Language
}

func NewGrammarLoader() *GrammarLoader {
	return &GrammarLoader{
		languages: map[Language]*sitter.Language{
			JavaScript: sitter.NewLanguage(tree_sitter_javascript.Language()),
			HTML:       sitter.NewLanguage(tree_sitter_html.Language()),
			CSS:        sitter.NewLanguage(tree_sitter_css.Language()),
		},
	}
}

func (gl *GrammarLoader) Language(lang Language) (*sitter.Language, bool) {
	l, ok := gl.languages[lang]
	return l, ok
}

func (gl *GrammarLoader) Languages() []Language {
	out := make([]Language, 0, len(gl.languages))
	for lang := range gl.languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var extensionLanguages = map[string]Language{
	".js":   JavaScript,
	".mjs":  JavaScript,
	".vue":  HTML,
	".html": HTML,
	".css":  CSS,
}

// LanguageForFile maps a filename to the grammar its raw source is parsed with.
func LanguageForFile(filename string) (Language, bool) {
	lang, ok := extensionLanguages[strings.ToLower(path.Ext(filename))]
	return lang, ok
}
