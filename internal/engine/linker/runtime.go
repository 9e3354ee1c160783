// # internal/engine/linker/runtime.go
package linker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Runtime names shared by every emitted script.
const (
	RegistryName      = "__modules__"
	ExportHelperName  = "__export__"
	DynamicImportName = "__dynamic_import__"
	ModuleVarName     = "__module__"
	StyleName         = "__css__"
	AppName           = "__app__"
	StyleElementID    = "__sfc-styles"
	MountElementID    = "app"
)

// Preamble creates a fresh registry, style accumulator and helpers on the
// given global object. It runs once per link, before any module.
func Preamble(global string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s = {}\n", global, RegistryName)
	fmt.Fprintf(&b, "%s.%s = ''\n", global, StyleName)
	fmt.Fprintf(&b, "%s.%s = (mod, key, get) => {\n", global, ExportHelperName)
	b.WriteString("  Object.defineProperty(mod, key, { enumerable: true, configurable: true, get })\n")
	b.WriteString("}\n")
	fmt.Fprintf(&b, "%s.%s = key => Promise.resolve(%s.%s[key])\n", global, DynamicImportName, global, RegistryName)
	return b.String()
}

// MountScript mounts the root component's default export as a Vue app,
// replacing any previously mounted one.
func MountScript(global, root string) string {
	return fmt.Sprintf(`import { createApp as _createApp } from "vue"

if (%[1]s.%[2]s) {
  %[1]s.%[2]s.unmount()
  document.getElementById(%[5]q).innerHTML = ''
}

document.getElementById(%[4]q).innerHTML = %[1]s.%[3]s
const app = %[1]s.%[2]s = _createApp(%[6]s[%[7]s].default)
app.config.errorHandler = e => console.error(e)
app.mount('#%[5]s')
`, global, AppName, StyleName, StyleElementID, MountElementID, RegistryName, quote(root))
}

func moduleHeader(filename string) string {
	return fmt.Sprintf("const %s = %s[%s] = { [Symbol.toStringTag]: \"Module\" }\n\n", ModuleVarName, RegistryName, quote(filename))
}

func aliasDecl(alias, filename string) string {
	return fmt.Sprintf("const %s = %s[%s]\n", alias, RegistryName, quote(filename))
}

func exportCall(name, local string) string {
	return fmt.Sprintf("\n%s(%s, %s, () => %s)", ExportHelperName, ModuleVarName, quote(name), local)
}

func exportAllLoop(alias string) string {
	return fmt.Sprintf("\nfor (const key in %[1]s) {\n  if (key !== 'default') {\n    %[2]s(%[3]s, key, () => %[1]s[key])\n  }\n}",
		alias, ExportHelperName, ModuleVarName)
}

func styleAppend(global, css string) string {
	return fmt.Sprintf("\n%s.%s += %s", global, StyleName, quote(css))
}

// quote renders s as a JavaScript string literal. JSON escaping of <, > and &
// keeps the literal safe inside inline script elements.
func quote(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return string(data)
}
