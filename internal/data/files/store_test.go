package files

import (
	"os"
	"path/filepath"
	"testing"

	"sfclink/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddChangeDelete(t *testing.T) {
	s := NewDefault()
	assert.Equal(t, []string{AppFile, MainFile}, s.Filenames())
	assert.Equal(t, AppFile, s.Active())

	require.NoError(t, s.Add("./Comp.vue", "<template><p/></template>"))
	assert.True(t, s.Has("Comp.vue"))
	assert.Equal(t, "Comp.vue", s.Active())

	require.NoError(t, s.Change("Comp.vue", "<template><b/></template>"))
	f, ok := s.Lookup("Comp.vue")
	require.True(t, ok)
	assert.Equal(t, "<template><b/></template>", f.Code())

	require.NoError(t, s.Delete("Comp.vue"))
	assert.False(t, s.Has("Comp.vue"))
	assert.Equal(t, AppFile, s.Active(), "deleting the active file falls back to the app file")

	err := s.Change("Nope.vue", "")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	assert.True(t, errors.IsCode(s.Delete("Nope.vue"), errors.CodeNotFound))
}

func TestStore_AddRejectsUnsupported(t *testing.T) {
	s := New()
	err := s.Add("styles.css", "a{}")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ImportMap(t *testing.T) {
	s := New()
	assert.Equal(t, "", s.ImportMap())

	require.NoError(t, s.Add(ImportMapFile, ""))
	assert.Contains(t, s.ImportMap(), `"imports"`)
}

func TestStore_Export(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("a.js", "export const a = 1"))
	require.NoError(t, s.Add("b.js", "export const b = 2"))
	assert.Equal(t, map[string]string{
		"a.js": "export const a = 1",
		"b.js": "export const b = 2",
	}, s.Export())
}

func TestFile_ErrorsSideChannel(t *testing.T) {
	f := NewFile("a.js", "x")
	f.SetCompiled(Compiled{JS: "x", SSR: "x"})
	f.RecordErrors(errors.New(errors.CodeCompile, "first"))
	f.RecordErrors(errors.New(errors.CodeCompile, "second"))
	assert.Len(t, f.Errors(), 2)
	assert.Equal(t, "x", f.Compiled().JS)

	f.SetErrors()
	assert.Empty(t, f.Errors())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Comp.vue", Normalize("./Comp.vue"))
	assert.Equal(t, "Comp.vue", Normalize(".//Comp.vue"))
	assert.Equal(t, "lib/x.js", Normalize("././lib/x.js"))
	assert.Equal(t, "x.js", Normalize("x.js"))
}

func TestLoadDirAndSync(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("App.vue", "<template/>")
	write("lib/util.js", "export const x = 1")
	write("lib/util.test.js", "ignored")
	write("README.md", "not a source")
	write("node_modules/pkg/index.js", "ignored")

	m, err := NewMatcher(nil, []string{"**.test.js"})
	require.NoError(t, err)

	s, err := LoadDir(dir, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"App.vue", "lib/util.js"}, s.Filenames())

	write("lib/util.js", "export const x = 2")
	write("lib/new.js", "export const y = 3")
	require.NoError(t, os.Remove(filepath.Join(dir, "App.vue")))

	changed, err := s.Sync(dir, m, []string{
		filepath.Join(dir, "lib", "util.js"),
		"lib/new.js",
		filepath.Join(dir, "App.vue"),
		filepath.Join(dir, "README.md"),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lib/util.js", "lib/new.js", "App.vue"}, changed)
	assert.Equal(t, []string{"lib/new.js", "lib/util.js"}, s.Filenames())

	f, _ := s.Lookup("lib/util.js")
	assert.Equal(t, "export const x = 2", f.Code())
}

func TestNewMatcher_InvalidPattern(t *testing.T) {
	_, err := NewMatcher([]string{"[unclosed"}, nil)
	assert.Error(t, err)
}

func TestSync_RemovedDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "widgets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widgets", "a.js"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widgets", "b.vue"), []byte("2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte("3"), 0o644))

	m, err := NewMatcher(nil, nil)
	require.NoError(t, err)
	s, err := LoadDir(dir, m)
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "widgets")))
	changed, err := s.Sync(dir, m, []string{"widgets"})
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets/a.js", "widgets/b.vue"}, changed)
	assert.Equal(t, []string{"main.js"}, s.Filenames())
}
