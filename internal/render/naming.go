package render

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

// initialisms are kept upper-case in Go identifiers.
var initialisms = map[string]bool{
	"API": true, "ASCII": true, "CPU": true, "CSS": true, "DNS": true, "EOF": true,
	"GUID": true, "HTML": true, "HTTP": true, "HTTPS": true, "ID": true, "IP": true,
	"JSON": true, "JWT": true, "SKU": true, "SQL": true, "SSH": true, "TCP": true,
	"TLS": true, "TTL": true, "UI": true, "UID": true, "URI": true, "URL": true,
	"UTF8": true, "UUID": true, "VM": true, "XML": true,
}

// goosSuffixes are file name suffixes the go tool reads as build constraints.
var goosSuffixes = map[string]bool{
	"test": true, "aix": true, "android": true, "darwin": true, "dragonfly": true,
	"freebsd": true, "illumos": true, "ios": true, "js": true, "linux": true,
	"netbsd": true, "openbsd": true, "plan9": true, "solaris": true, "wasip1": true,
	"windows": true, "386": true, "amd64": true, "arm": true, "arm64": true,
	"loong64": true, "mips": true, "mips64": true, "mipsle": true, "ppc64": true,
	"ppc64le": true, "riscv64": true, "s390x": true, "wasm": true,
}

// GoName turns a snake_case column or table name into an exported Go
// identifier, honoring common initialisms: teacher_id -> TeacherID.
func GoName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	var b strings.Builder
	for _, p := range parts {
		upper := strings.ToUpper(p)
		if initialisms[upper] {
			b.WriteString(upper)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	out := b.String()
	if out == "" {
		return "X"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "X" + out
	}
	return out
}

// TypeName is the model type of a table: the singular, camelized name.
// courses -> Course, order_items -> OrderItem.
func TypeName(table string) string {
	parts := strings.Split(table, "_")
	last := len(parts) - 1
	for last > 0 && parts[last] == "" {
		last--
	}
	parts[last] = inflect.Singularize(parts[last])
	return GoName(inflect.Underscore(strings.Join(parts, "_")))
}

// lowerName is TypeName with a lower-case first word, for unexported names.
func lowerName(typeName string) string {
	for i, r := range typeName {
		if !unicode.IsUpper(r) {
			if i > 1 {
				// CPUUsage -> cpuUsage
				i--
			}
			if i == 0 {
				return typeName
			}
			return strings.ToLower(typeName[:i]) + typeName[i:]
		}
	}
	return strings.ToLower(typeName)
}

// fileBase is the file name (without .go) used for a table. It is the table
// name, with a trailing underscore when the name would read as a build
// constraint or a test file, or clash with routers/query.go.
func fileBase(table string) string {
	if table == "query" {
		return table + "_"
	}
	if i := strings.LastIndex(table, "_"); i >= 0 && goosSuffixes[strings.ToLower(table[i+1:])] {
		return table + "_"
	}
	return table
}
