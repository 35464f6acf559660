package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Annany2002/nebula-apigen/api"
	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/generator"
	"github.com/Annany2002/nebula-apigen/internal/logger"
	"github.com/Annany2002/nebula-apigen/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

const usage = `Usage: apigen <command> [flags]

Commands:
  generate   introspect the database and write a Go API project
  serve      serve the CRUD API directly from the introspected schema
  inspect    print the introspected schema as a YAML manifest

Run "apigen <command> --help" for the flags of a command.
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		customLog.Errorf("apigen: %v", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("missing command")
	}
	command, rest := args[0], args[1:]

	switch command {
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	case "generate", "serve", "inspect":
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := config.LoadConfig(rest)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	switch command {
	case "generate":
		return generate(ctx, cfg, stdout)
	case "serve":
		return serve(ctx, cfg)
	default:
		return inspect(ctx, cfg, stdout)
	}
}

func generate(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	report, err := generator.New(cfg).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Generated %d files for %d tables in %s\n", len(report.Files), len(report.Tables), cfg.OutputDir)
	fmt.Fprintf(stdout, "Next: cd %s && go mod tidy && go run .\n", cfg.OutputDir)
	return nil
}

func inspect(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	tables, dialect, err := generator.LoadTables(ctx, cfg)
	if err != nil {
		return err
	}
	data, err := domain.Manifest{Dialect: dialect, Tables: tables}.Encode()
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

// serve exposes the CRUD surface of a relational source until ctx is done.
func serve(ctx context.Context, cfg *config.Config) error {
	if !cfg.IsRelational() {
		return fmt.Errorf("serve supports sqlite, postgres and mysql sources, not %s", cfg.DBType)
	}

	tables, dialect, err := generator.LoadTables(ctx, cfg)
	if err != nil {
		return err
	}
	if dialect != cfg.DBType {
		return fmt.Errorf("schema manifest is for %s but DB_TYPE is %s", dialect, cfg.DBType)
	}

	db, err := storage.Connect(ctx, cfg, storage.ConnectOptions{})
	if err != nil {
		return err
	}
	defer func() {
		customLog.Println("Closing database connection...")
		if err := db.Close(); err != nil {
			customLog.Printf("Error closing database: %v", err)
		}
	}()

	router, err := api.SetupRouter(storage.NewRecordStore(db, dialect), tables, cfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		customLog.Printf("Serving %d tables on port %s", len(tables), cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		customLog.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
