// # internal/data/files/store.go
package files

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"sfclink/internal/core/errors"
)

const (
	AppFile       = "App.vue"
	MainFile      = "main.js"
	ImportMapFile = "import-map.json"
)

const importMapTemplate = `{
  "imports": {
  }
}`

const welcomeCode = `<template>
  <h1>{{ msg }}</h1>
</template>

<script setup>
const msg = 'Hello World!'
</script>

<style scoped>
h1 {
  font-size: 2em;
}
</style>`

// Compiled records the outputs of the last compile of a file.
type Compiled struct {
	JS     string
	CSS    string
	SSR    string
	Errors []error
}

// File is a named source plus its compiled outputs. Code is only replaced by
// the store; Compiled is overwritten by the compiler and appended to by the
// linker's error side channel.
type File struct {
	Filename string

	mu       sync.RWMutex
	code     string
	compiled Compiled
}

func NewFile(filename, code string) *File {
	return &File{Filename: filename, code: code}
}

func (f *File) Code() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.code
}

func (f *File) setCode(code string) {
	f.mu.Lock()
	f.code = code
	f.mu.Unlock()
}

// Compiled returns a copy of the compiled outputs.
func (f *File) Compiled() Compiled {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := f.compiled
	out.Errors = append([]error(nil), f.compiled.Errors...)
	return out
}

func (f *File) SetCompiled(c Compiled) {
	f.mu.Lock()
	f.compiled = c
	f.mu.Unlock()
}

// SetErrors replaces the error list, keeping the compiled outputs.
func (f *File) SetErrors(errs ...error) {
	f.mu.Lock()
	f.compiled.Errors = append([]error(nil), errs...)
	f.mu.Unlock()
}

// RecordErrors appends to the error list.
func (f *File) RecordErrors(errs ...error) {
	f.mu.Lock()
	f.compiled.Errors = append(f.compiled.Errors, errs...)
	f.mu.Unlock()
}

func (f *File) Errors() []error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]error(nil), f.compiled.Errors...)
}

// Store is the in-memory file system the linker resolves imports against.
type Store struct {
	mu       sync.RWMutex
	files    map[string]*File
	active   string
	fallback string
}

func New() *Store {
	return &Store{files: make(map[string]*File), fallback: AppFile}
}

// NewDefault seeds the store with a welcome component and an entry script.
func NewDefault() *Store {
	s := New()
	s.files[AppFile] = NewFile(AppFile, welcomeCode)
	s.files[MainFile] = NewFile(MainFile, "")
	s.active = AppFile
	return s
}

// SetFallback changes the file that becomes active when the active file is deleted.
func (s *Store) SetFallback(filename string) {
	s.mu.Lock()
	s.fallback = filename
	s.mu.Unlock()
}

// Lookup resolves a filename to its record.
func (s *Store) Lookup(filename string) (*File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[filename]
	return f, ok
}

func (s *Store) Has(filename string) bool {
	_, ok := s.Lookup(filename)
	return ok
}

func (s *Store) Filenames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// IsSupported reports whether a filename can live in the store.
func IsSupported(filename string) bool {
	if path.Base(filename) == ImportMapFile {
		return true
	}
	ext := strings.ToLower(path.Ext(filename))
	return ext == ".vue" || ext == ".js"
}

// Add creates or replaces a file and makes it active.
func (s *Store) Add(filename, code string) error {
	filename = Normalize(filename)
	if !IsSupported(filename) {
		err := errors.New(errors.CodeValidationError, "Sandbox only supports *.vue, *.js files or import-map.json.")
		return errors.AddContext(err, errors.CtxFile, filename)
	}
	if filename == ImportMapFile && strings.TrimSpace(code) == "" {
		code = importMapTemplate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[filename] = NewFile(filename, code)
	s.active = filename
	return nil
}

// Change replaces the code of an existing file and makes it active.
func (s *Store) Change(filename, code string) error {
	filename = Normalize(filename)
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[filename]
	if !ok {
		return notExists(filename)
	}
	f.setCode(code)
	s.active = filename
	return nil
}

func (s *Store) Delete(filename string) error {
	filename = Normalize(filename)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[filename]; !ok {
		return notExists(filename)
	}
	if s.active == filename {
		s.active = s.fallback
	}
	delete(s.files, filename)
	return nil
}

func (s *Store) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) SetActive(filename string) error {
	filename = Normalize(filename)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[filename]; !ok {
		return notExists(filename)
	}
	s.active = filename
	return nil
}

// Export returns filename -> source for every file.
func (s *Store) Export() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.files))
	for name, f := range s.files {
		out[name] = f.Code()
	}
	return out
}

// ImportMap returns the import-map.json source, or "" when absent.
func (s *Store) ImportMap() string {
	if f, ok := s.Lookup(ImportMapFile); ok {
		return f.Code()
	}
	return ""
}

// Normalize strips leading "./" segments and slashes, the same rule used to
// resolve relative import specifiers against the store.
func Normalize(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	for {
		switch {
		case strings.HasPrefix(name, "./"):
			name = name[2:]
		case strings.HasPrefix(name, "/"):
			name = name[1:]
		default:
			return name
		}
	}
}

func notExists(filename string) error {
	err := errors.New(errors.CodeNotFound, fmt.Sprintf("File %q does not exist.", filename))
	return errors.AddContext(err, errors.CtxFile, filename)
}
