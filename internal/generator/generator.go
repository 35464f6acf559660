// Package generator runs the generate pipeline: introspect, map, render and
// write, in that order, once.
package generator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/assemble"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/introspect"
	"github.com/Annany2002/nebula-apigen/internal/logger"
	"github.com/Annany2002/nebula-apigen/internal/render"
	"github.com/Annany2002/nebula-apigen/internal/typemap"
)

var customLog = logger.NewLogger()

// State is a stage of a generation run.
type State string

const (
	StateIdle          State = "idle"
	StateIntrospecting State = "introspecting"
	StateMapping       State = "mapping"
	StateRendering     State = "rendering"
	StateWriting       State = "writing"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Report summarizes a run.
type Report struct {
	Tables []string
	Files  []string
	State  State
}

// OpenFunc connects an introspector for cfg.
type OpenFunc func(ctx context.Context, cfg *config.Config) (introspect.Introspector, error)

// Generator owns one run of the pipeline.
type Generator struct {
	cfg   *config.Config
	open  OpenFunc
	state State
}

// New returns an idle generator that introspects the source described by cfg.
func New(cfg *config.Config) *Generator {
	return &Generator{cfg: cfg, open: introspect.New, state: StateIdle}
}

// WithOpener replaces the introspector factory.
func (g *Generator) WithOpener(open OpenFunc) *Generator {
	g.open = open
	return g
}

// State returns the current stage.
func (g *Generator) State() State {
	return g.state
}

// Run executes the pipeline. Nothing is written unless every stage before
// Writing succeeded; a failure moves the generator to StateFailed and the
// returned report says how far it got.
func (g *Generator) Run(ctx context.Context) (*Report, error) {
	if g.state != StateIdle {
		return nil, fmt.Errorf("generator already ran (state %s)", g.state)
	}
	report := &Report{}

	g.transition(StateIntrospecting)
	tables, err := Discover(ctx, g.cfg, g.open)
	if err != nil {
		return g.fail(report, err)
	}
	for _, t := range tables {
		report.Tables = append(report.Tables, t.Name)
	}

	g.transition(StateMapping)
	mapped, err := typemap.New(g.cfg.DBType).MapTables(tables)
	if err != nil {
		return g.fail(report, err)
	}

	g.transition(StateRendering)
	r, err := render.New(g.cfg)
	if err != nil {
		return g.fail(report, err)
	}
	files, err := r.Render(mapped)
	if err != nil {
		return g.fail(report, err)
	}

	g.transition(StateWriting)
	written, err := assemble.New(g.cfg.OutputDir, g.cfg.Overwrite).Write(files)
	report.Files = written
	if err != nil {
		return g.fail(report, err)
	}

	g.transition(StateDone)
	report.State = g.state
	customLog.WithFields(logrus.Fields{
		"tables": len(report.Tables),
		"files":  len(report.Files),
		"output": g.cfg.OutputDir,
	}).Info("Generator: Project generated")
	return report, nil
}

func (g *Generator) transition(next State) {
	customLog.WithFields(logrus.Fields{"from": g.state, "to": next}).Info("Generator: State change")
	g.state = next
}

func (g *Generator) fail(report *Report, err error) (*Report, error) {
	customLog.WithField("stage", g.state).Errorf("Generator: Run failed: %v", err)
	g.transition(StateFailed)
	report.State = g.state
	return report, err
}

// Discover introspects the source described by cfg and returns its tables
// without target types. The introspector is closed before returning.
func Discover(ctx context.Context, cfg *config.Config, open OpenFunc) ([]domain.TableDescriptor, error) {
	in, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			customLog.Warnf("Generator: Closing %s introspector: %v", in.Dialect(), cerr)
		}
	}()

	tables, err := in.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	customLog.Printf("Generator: Found %d tables in %s source", len(tables), in.Dialect())
	return tables, nil
}

// LoadTables returns mapped descriptors for serve and inspect: from the
// schema manifest when cfg.SchemaFile is set, otherwise by introspection.
func LoadTables(ctx context.Context, cfg *config.Config) ([]domain.TableDescriptor, string, error) {
	if cfg.SchemaFile != "" {
		m, err := domain.LoadManifest(cfg.SchemaFile)
		if err != nil {
			return nil, "", err
		}
		mapped, err := typemap.New(m.Dialect).MapTables(m.Tables)
		if err != nil {
			return nil, "", err
		}
		customLog.Printf("Generator: Loaded %d tables from %s", len(mapped), cfg.SchemaFile)
		return mapped, config.NormalizeDBType(m.Dialect), nil
	}

	tables, err := Discover(ctx, cfg, introspect.New)
	if err != nil {
		return nil, "", err
	}
	mapped, err := typemap.New(cfg.DBType).MapTables(tables)
	if err != nil {
		return nil, "", err
	}
	return mapped, cfg.DBType, nil
}
