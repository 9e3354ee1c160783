package linker

import (
	"context"
	"os"
	"strings"
	"testing"

	"sfclink/internal/core/errors"
	"sfclink/internal/data/files"
	"sfclink/internal/engine/parser"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	v := m.Run()
	snaps.Clean(m)
	os.Exit(v)
}

// stubCompiler passes script through unchanged and can be told to fail or
// emit style output for specific files.
type stubCompiler struct {
	css  map[string]string
	fail map[string]string
}

func (c *stubCompiler) CompileFile(_ context.Context, f *files.File) {
	if msg, ok := c.fail[f.Filename]; ok {
		f.SetCompiled(files.Compiled{Errors: []error{errors.New(errors.CodeCompile, msg)}})
		return
	}
	f.SetCompiled(files.Compiled{JS: f.Code(), SSR: f.Code(), CSS: c.css[f.Filename]})
}

func newTestLinker(t *testing.T, sources map[string]string) (*Linker, *files.Store, *stubCompiler) {
	t.Helper()
	store := files.New()
	for name, code := range sources {
		require.NoError(t, store.Add(name, code))
	}
	compiler := &stubCompiler{css: map[string]string{}, fail: map[string]string{}}
	opts := DefaultOptions()
	opts.Mount = false
	opts.Workers = 2
	return New(store, compiler, parser.NewParser(parser.NewGrammarLoader()), opts), store, compiler
}

func link(t *testing.T, l *Linker, root string) *Output {
	t.Helper()
	out, err := l.Link(context.Background(), root)
	require.NoError(t, err)
	return out
}

// moduleText returns the emitted text of filename.
func moduleText(t *testing.T, out *Output, filename string) string {
	t.Helper()
	for i, name := range out.Order {
		if name == filename {
			return out.Modules[i+1]
		}
	}
	t.Fatalf("module %s not emitted; order %v", filename, out.Order)
	return ""
}

func TestLink_NoRelativeImports(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "import { ref } from 'vue'\nexport const a = ref(1)\n",
	})
	out := link(t, l, "a.js")

	require.Equal(t, []string{"a.js"}, out.Order)
	require.Len(t, out.Modules, 2)
	assert.Equal(t, Preamble("window"), out.Modules[0])

	text := moduleText(t, out, "a.js")
	assert.Equal(t, 1, strings.Count(text, `__modules__["a.js"] =`))
	assert.NotContains(t, text, "__import_")
	assert.Contains(t, text, "import { ref } from 'vue'")
	assert.Contains(t, text, "const a = ref(1)")
	assert.Contains(t, text, `__export__(__module__, "a", () => a)`)
	assert.NotContains(t, text, "export const")
}

func TestLink_ImportRewrite(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "import def, { x, y as z } from './b.js'\nimport * as ns from './b.js'\nexport const sum = def + x + z + ns.w\n",
		"b.js": "export default 1\nexport const x = 2, y = 3, w = 4\n",
	})
	out := link(t, l, "a.js")

	assert.Equal(t, []string{"b.js", "a.js"}, out.Order)
	text := moduleText(t, out, "a.js")
	assert.Equal(t, 1, strings.Count(text, `const __import_1__ = __modules__["b.js"]`), "one alias per imported file")
	assert.NotContains(t, text, "__import_2__")
	assert.NotContains(t, text, "from './b.js'")
	assert.Contains(t, text, "const sum = __import_1__.default + __import_1__.x + __import_1__.y + __import_1__.w")

	b := moduleText(t, out, "b.js")
	assert.Contains(t, b, "__module__.default = 1")
	for _, name := range []string{"x", "y", "w"} {
		assert.Contains(t, b, `__export__(__module__, "`+name+`", () => `+name+`)`)
	}
}

func TestLink_Cycle(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"A.js": "import { b } from './B.js'\nexport const a = () => b\n",
		"B.js": "import { a } from './A.js'\nexport const b = () => a\n",
	})
	out := link(t, l, "A.js")

	assert.ElementsMatch(t, []string{"A.js", "B.js"}, out.Order)
	assert.Len(t, out.Modules, 3)
	assert.Equal(t, 2, out.Visited)
	assert.False(t, out.Failed())
}

func TestLink_DiamondOrder(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"A.js": "import './C.js'\nimport './B.js'\n",
		"B.js": "import './C.js'\n",
		"C.js": "export const c = 1\n",
	})
	out := link(t, l, "A.js")

	assert.Equal(t, []string{"C.js", "B.js", "A.js"}, out.Order)
	assert.Contains(t, moduleText(t, out, "A.js"), `const __import_2__ = __modules__["B.js"]`)

	assert.Equal(t, []string{"C.js", "B.js"}, out.Edges["A.js"])
	assert.Equal(t, []string{"C.js"}, out.Edges["B.js"])
	assert.Empty(t, out.Edges["C.js"])
}

func TestLink_ShorthandProperty(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "import { bar as foo } from './m.js'\n" +
			"export const o = { foo }\n" +
			"export function f(src) { const { foo } = src; return foo }\n" +
			"export function g(src) { let other; ({ foo: other } = src); return other }\n",
		"m.js": "export const bar = 1\n",
	})
	out := link(t, l, "a.js")
	text := moduleText(t, out, "a.js")

	assert.Contains(t, text, "const o = { foo: __import_1__.bar }")
	assert.Contains(t, text, "const { foo } = src; return foo }", "declaration patterns bind, they do not reference")
	assert.Contains(t, text, "({ foo: other } = src)")
}

func TestLink_ShorthandInAssignmentPattern(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "import { foo } from './m.js'\nlet target\n;({ foo } = { foo: 2 })\n",
		"m.js": "export let foo = 1\n",
	})
	out := link(t, l, "a.js")
	assert.Contains(t, moduleText(t, out, "a.js"), "({ foo: __import_1__.foo } = { foo: 2 })")
}

func TestLink_ShadowedBindings(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "import { x } from './m.js'\n" +
			"export function f(x) { return x }\n" +
			"export function g() { return x }\n" +
			"export const h = () => { for (const x of [1]) { return x } }\n" +
			"export const k = obj => obj.x\n",
		"m.js": "export const x = 1\n",
	})
	out := link(t, l, "a.js")
	text := moduleText(t, out, "a.js")

	assert.Contains(t, text, "function f(x) { return x }")
	assert.Contains(t, text, "function g() { return __import_1__.x }")
	assert.Contains(t, text, "for (const x of [1]) { return x }")
	assert.Contains(t, text, "obj => obj.x", "property access is not a reference")
}

func TestLink_SuperclassHoist(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "import { Bar } from './m.js'\n" +
			"class Foo extends Bar {}\n" +
			"const made = new Bar()\n" +
			"class Baz extends Bar {}\n" +
			"export { Foo, Baz, made }\n",
		"m.js": "export class Bar {}\n",
	})
	out := link(t, l, "a.js")
	text := moduleText(t, out, "a.js")

	assert.Equal(t, 1, strings.Count(text, "const Bar = __import_1__.Bar;\n"))
	assert.Contains(t, text, "const Bar = __import_1__.Bar;\nclass Foo extends Bar {}")
	assert.Contains(t, text, "class Baz extends Bar {}")
	assert.Contains(t, text, "new __import_1__.Bar()")
}

func TestLink_DynamicImport(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "export const load = () => import('./m.js')\nexport const ext = () => import('some-package')\n",
		"m.js": "export const m = 1\n",
	})
	out := link(t, l, "a.js")
	text := moduleText(t, out, "a.js")

	assert.Contains(t, text, `() => __dynamic_import__("m.js")`)
	assert.Contains(t, text, "import('some-package')")
	assert.Equal(t, []string{"m.js", "a.js"}, out.Order, "dynamic targets join the graph")
}

func TestLink_MissingFile(t *testing.T) {
	l, store, _ := newTestLinker(t, map[string]string{
		"a.js": "import x from './nope.js'\nconsole.log(x)\n",
	})
	out := link(t, l, "a.js")

	require.Contains(t, out.Failures, "a.js")
	err := out.Failures["a.js"][0]
	assert.True(t, errors.IsCode(err, errors.CodeMissingFile))
	assert.Contains(t, err.Error(), `File "nope.js" does not exist.`)
	assert.Empty(t, out.Order)
	assert.Len(t, out.Modules, 1, "only the preamble is emitted")

	f, _ := store.Lookup("a.js")
	assert.Len(t, f.Errors(), 1)
}

func TestLink_MissingDynamicTarget(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "export const load = () => import('./gone.js')\n",
	})
	out := link(t, l, "a.js")
	require.Contains(t, out.Failures, "a.js")
	assert.True(t, errors.IsCode(out.Failures["a.js"][0], errors.CodeMissingFile))
}

func TestLink_CompileErrorPropagates(t *testing.T) {
	l, store, compiler := newTestLinker(t, map[string]string{
		"a.js":    "import { b } from './b.js'\nimport { c } from './c.js'\nexport { b, c }\n",
		"b.js":    "export const b = 1\n",
		"c.js":    "export const c = 2\n",
		"side.js": "export const unused = 0\n",
	})
	compiler.fail["b.js"] = "boom"
	out := link(t, l, "a.js")

	assert.Equal(t, []string{"c.js"}, out.Order, "siblings of a failed file are still emitted")
	require.Contains(t, out.Failures, "b.js")
	require.Contains(t, out.Failures, "a.js")
	assert.True(t, errors.IsCode(out.Failures["b.js"][0], errors.CodeCompile))
	assert.True(t, errors.IsCode(out.Failures["a.js"][0], errors.CodeDependencyFailed))

	a, _ := store.Lookup("a.js")
	require.Len(t, a.Errors(), 1)
	assert.Contains(t, a.Errors()[0].Error(), `"b.js"`)
}

func TestLink_ParseError(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "export const = \n",
	})
	out := link(t, l, "a.js")
	require.Contains(t, out.Failures, "a.js")
	assert.True(t, errors.IsCode(out.Failures["a.js"][0], errors.CodeParse))
}

func TestLink_ExportForms(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{
		"a.js": "export * from './m.js'\n" +
			"export * as all from './m.js'\n" +
			"export { one as uno } from './m.js'\n" +
			"export { ref } from 'vue'\n" +
			"export default function App() {}\n",
		"m.js": "export const one = 1\n",
	})
	out := link(t, l, "a.js")
	text := moduleText(t, out, "a.js")

	assert.Equal(t, 1, strings.Count(text, `const __import_1__ = __modules__["m.js"]`))
	assert.Contains(t, text, "for (const key in __import_1__)")
	assert.Contains(t, text, `__export__(__module__, "all", () => __import_1__)`)
	assert.Contains(t, text, `__export__(__module__, "uno", () => __import_1__.one)`)
	assert.Contains(t, text, "export { ref } from 'vue'", "bare re-exports are untouched")
	assert.Contains(t, text, "__module__.default = function App() {}")
}

func TestLink_StyleInjection(t *testing.T) {
	l, _, compiler := newTestLinker(t, map[string]string{
		"a.js": "export const a = 1\n",
	})
	compiler.css["a.js"] = "h1 { color: red }"
	out := link(t, l, "a.js")
	assert.True(t, strings.HasSuffix(moduleText(t, out, "a.js"), "\nwindow.__css__ += \"h1 { color: red }\""))
}

func TestLink_DefaultRootAndMount(t *testing.T) {
	store := files.New()
	require.NoError(t, store.Add(files.AppFile, "export default {}\n"))
	l := New(store, &stubCompiler{}, parser.NewParser(parser.NewGrammarLoader()), Options{Mount: true})

	out, err := l.Link(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, files.AppFile, out.Root)
	require.Len(t, out.Modules, 3)
	assert.Equal(t, MountScript("window", files.AppFile), out.Modules[2])
	assert.Contains(t, out.Modules[2], `_createApp(__modules__["App.vue"].default)`)
	assert.NotEqual(t, out.ID.String(), "")
}

func TestLink_MissingRoot(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{})
	_, err := l.Link(context.Background(), "nope.js")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMissingFile))
}

func TestLink_Cancelled(t *testing.T) {
	l, _, _ := newTestLinker(t, map[string]string{"a.js": "export const a = 1\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Link(ctx, "a.js")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLink_Snapshot(t *testing.T) {
	l, _, compiler := newTestLinker(t, map[string]string{
		"main.js":  "import App from './App.js'\nimport { format } from './util.js'\nexport const title = format(App.name)\n",
		"App.js":   "import { format } from './util.js'\nexport default { name: format('app') }\n",
		"util.js":  "export function format(s) { return s.toUpperCase() }\n",
		"extra.js": "export const unused = true\n",
	})
	compiler.css["App.js"] = ".app { margin: 0 }"
	out := link(t, l, "main.js")
	snaps.MatchSnapshot(t, strings.Join(out.Modules, "\n// ----\n"))
}
