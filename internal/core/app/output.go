package app

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"sfclink/internal/core/config"
	"sfclink/internal/core/errors"
	"sfclink/internal/engine/linker"
	"sfclink/internal/shared/util"
)

const (
	ManifestFile = "modules.json"
	HTMLFile     = "index.html"
)

var scriptFilePattern = regexp.MustCompile(`^\d{3}-.+\.js$`)

// Manifest describes one written build.
type Manifest struct {
	ID       string              `json:"id"`
	Root     string              `json:"root"`
	Order    []string            `json:"order"`
	Scripts  []string            `json:"scripts"`
	Failures map[string][]string `json:"failures,omitempty"`
	Cycles   [][]string          `json:"cycles,omitempty"`
}

// scriptNames names every emitted script "NNN-<label>.js" so a directory
// listing matches evaluation order.
func scriptNames(out *linker.Output, mount bool) []string {
	names := make([]string, 0, len(out.Modules))
	for i := range out.Modules {
		var label string
		switch {
		case i == 0:
			label = "preamble"
		case i-1 < len(out.Order):
			label = scriptLabel(out.Order[i-1])
		case mount:
			label = "mount"
		default:
			label = "script"
		}
		names = append(names, fmt.Sprintf("%03d-%s.js", i, label))
	}
	return names
}

func scriptLabel(filename string) string {
	label := strings.NewReplacer("/", "__", "\\", "__", " ", "_").Replace(filename)
	return strings.TrimSuffix(label, ".js")
}

// writeOutputs writes the scripts, the manifest and optionally the host page
// into dir, then removes scripts left over from earlier builds.
func writeOutputs(dir string, cfg *config.Config, out *linker.Output, cycles [][]string, importMap string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, outputError(err, dir)
	}

	names := scriptNames(out, cfg.Link.MountEnabled())
	written := make([]string, 0, len(names)+2)
	keep := make(map[string]bool, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := util.WriteAtomic(path, []byte(out.Modules[i]), 0o644); err != nil {
			return written, outputError(err, path)
		}
		keep[name] = true
		written = append(written, path)
	}

	manifest := Manifest{
		ID:      out.ID.String(),
		Root:    out.Root,
		Order:   append([]string{}, out.Order...),
		Scripts: names,
		Cycles:  cycles,
	}
	if len(out.Failures) > 0 {
		manifest.Failures = make(map[string][]string, len(out.Failures))
		for _, name := range util.SortedKeys(out.Failures) {
			for _, err := range out.Failures[name] {
				manifest.Failures[name] = append(manifest.Failures[name], errorMessage(err))
			}
		}
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return written, errors.Wrap(err, errors.CodeInternal, "encode manifest")
	}
	manifestPath := filepath.Join(dir, ManifestFile)
	if err := util.WriteAtomic(manifestPath, append(data, '\n'), 0o644); err != nil {
		return written, outputError(err, manifestPath)
	}
	written = append(written, manifestPath)

	if cfg.Output.HTMLEnabled() {
		htmlPath := filepath.Join(dir, HTMLFile)
		page := renderHostPage(cfg.Output.Title, importMap, names)
		if err := util.WriteAtomic(htmlPath, []byte(page), 0o644); err != nil {
			return written, outputError(err, htmlPath)
		}
		written = append(written, htmlPath)
	}

	if err := removeStaleScripts(dir, keep); err != nil {
		return written, err
	}
	return written, nil
}

func removeStaleScripts(dir string, keep map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return outputError(err, dir)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || keep[name] || !scriptFilePattern.MatchString(name) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return outputError(err, filepath.Join(dir, name))
		}
	}
	return nil
}

// renderHostPage builds a page that installs the import map, provides the
// style and mount elements, and loads the scripts in order.
func renderHostPage(title, importMap string, scripts []string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("  <meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", html.EscapeString(title))
	if m := strings.TrimSpace(importMap); m != "" {
		// </script> inside the map would end the element early.
		m = strings.ReplaceAll(m, "</", "<\\/")
		fmt.Fprintf(&b, "  <script type=\"importmap\">\n%s\n  </script>\n", m)
	}
	fmt.Fprintf(&b, "  <style id=\"%s\"></style>\n", linker.StyleElementID)
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "  <div id=\"%s\"></div>\n", linker.MountElementID)
	for _, s := range scripts {
		fmt.Fprintf(&b, "  <script type=\"module\" src=\"./%s\"></script>\n", html.EscapeString(s))
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func outputError(err error, path string) error {
	return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write output"), errors.CtxPath, path)
}

// errorMessage drops the context suffix of domain errors for display.
func errorMessage(err error) string {
	if de, ok := errors.AsDomain(err); ok {
		de = de.Origin()
		return "[" + string(de.Code) + "] " + de.Message
	}
	return err.Error()
}
