// Package render turns mapped table descriptors into the source files of a
// standalone gin project.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/logger"
)

var (
	customLog = logger.NewLogger()

	//go:embed templates/*.tmpl
	templateFS embed.FS
)

// Layers rendered once per table, in output order.
var layers = []struct {
	dir      string
	template string
}{
	{"models", "model.go.tmpl"},
	{"schemas", "schema.go.tmpl"},
	{"services", "service_%s.go.tmpl"},
	{"routers", "router.go.tmpl"},
}

// Renderer executes the project templates for one configuration.
type Renderer struct {
	cfg  *config.Config
	tmpl *template.Template
}

// New parses the embedded templates.
func New(cfg *config.Config) (*Renderer, error) {
	tmpl, err := template.New("apigen").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{cfg: cfg, tmpl: tmpl}, nil
}

// Render produces every file of the generated project: one file per layer
// per table, the shared files and, when enabled, the auth scaffold. Paths
// are relative to the output root and unique.
func (r *Renderer) Render(tables []domain.TableDescriptor) ([]domain.RenderedFile, error) {
	p, err := newProjectData(r.cfg, tables)
	if err != nil {
		return nil, err
	}

	var files []domain.RenderedFile
	for _, t := range p.Tables {
		view := tableView{projectData: p, tableData: t}
		for _, layer := range layers {
			name := layer.template
			if strings.Contains(name, "%s") {
				name = fmt.Sprintf(name, p.Mode)
			}
			f, err := r.execute(path.Join(layer.dir, t.File+".go"), name, view)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
		customLog.Debugf("Render: Rendered table '%s' as %s", t.Name, t.Type)
	}

	shared := []struct {
		path     string
		template string
	}{
		{"main.go", "main.go.tmpl"},
		{"config/settings.go", "settings.go.tmpl"},
		{"database/database.go", fmt.Sprintf("database_%s.go.tmpl", p.Mode)},
		{"routers/query.go", "query.go.tmpl"},
		{"go.mod", "go.mod.tmpl"},
		{".env.example", "env.tmpl"},
		{"README.md", "readme.md.tmpl"},
	}
	for _, s := range shared {
		f, err := r.execute(s.path, s.template, p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	manifest, err := domain.Manifest{Dialect: r.cfg.DBType, Tables: tables}.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	files = append(files, domain.RenderedFile{Path: domain.ManifestFile, Content: manifest})

	if p.Auth {
		authFiles, err := r.renderAuth(p)
		if err != nil {
			return nil, err
		}
		files = append(files, authFiles...)
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f.Path] {
			return nil, &core.SchemaError{Reason: fmt.Sprintf("two generated files target %s", f.Path)}
		}
		seen[f.Path] = true
	}

	customLog.Printf("Render: Produced %d files for %d tables (mode %s)", len(files), len(p.Tables), p.Mode)
	return files, nil
}

// execute runs one template and formats the result when it is Go source.
func (r *Renderer) execute(relPath, name string, data any) (domain.RenderedFile, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return domain.RenderedFile{}, fmt.Errorf("execute template %q for %s: %w", name, relPath, err)
	}

	content := buf.Bytes()
	if strings.HasSuffix(relPath, ".go") {
		formatted, err := formatGo(filepath.Join(r.cfg.OutputDir, relPath), content)
		if err != nil {
			return domain.RenderedFile{}, fmt.Errorf("format %s: %w", relPath, err)
		}
		content = formatted
	}
	return domain.RenderedFile{Path: relPath, Content: content}, nil
}
