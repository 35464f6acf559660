// internal/storage/database.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver registration ("pgx")
	_ "github.com/mattn/go-sqlite3"    // Driver registration ("sqlite3")

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// ConnectOptions controls how a source database is opened.
type ConnectOptions struct {
	// ReadOnly opens SQLite files with mode=ro. Server databases rely on the
	// caller issuing only catalog queries.
	ReadOnly bool
}

// Connect opens and pings the relational database described by cfg.
// The ping is bounded by cfg.ConnectTimeout so an unreachable host fails fast.
// Every failure is reported as a *core.ConnectionError.
func Connect(ctx context.Context, cfg *config.Config, opts ConnectOptions) (*sql.DB, error) {
	driver, dsn, err := DataSourceName(cfg, opts)
	if err != nil {
		return nil, &core.ConnectionError{Engine: cfg.DBType, Err: err}
	}

	if cfg.DBType == config.DBTypeSQLite {
		// sql.Open would silently create a missing file.
		if _, err := os.Stat(cfg.SQLitePath); err != nil {
			customLog.Printf("Storage: SQLite file '%s' not accessible: %v", cfg.SQLitePath, err)
			return nil, &core.ConnectionError{Engine: cfg.DBType, Err: fmt.Errorf("open %s: %w", cfg.SQLitePath, err)}
		}
	}

	customLog.Printf("Storage: Opening %s database (%s)", cfg.DBType, Redact(cfg))
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &core.ConnectionError{Engine: cfg.DBType, Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		customLog.Printf("Storage: Failed to ping %s database: %v", cfg.DBType, err)
		return nil, &core.ConnectionError{Engine: cfg.DBType, Err: err}
	}
	customLog.Println("Storage: Database connection successful.")

	return db, nil
}

// DataSourceName returns the database/sql driver name and DSN for cfg.
func DataSourceName(cfg *config.Config, opts ConnectOptions) (string, string, error) {
	switch cfg.DBType {
	case config.DBTypeSQLite:
		mode := "rwc"
		if opts.ReadOnly {
			mode = "ro"
		}
		return "sqlite3", fmt.Sprintf("file:%s?mode=%s&_foreign_keys=on", cfg.SQLitePath, mode), nil

	case config.DBTypePostgres:
		if cfg.DBURI != "" {
			return "pgx", cfg.DBURI, nil
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)),
			Path:   "/" + cfg.DBName,
		}
		if cfg.DBUser != "" {
			u.User = url.UserPassword(cfg.DBUser, cfg.DBPassword)
		}
		q := url.Values{}
		q.Set("sslmode", "disable")
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
		u.RawQuery = q.Encode()
		return "pgx", u.String(), nil

	case config.DBTypeMySQL:
		mc := mysql.NewConfig()
		mc.Net = "tcp"
		mc.ParseTime = true
		mc.Timeout = cfg.ConnectTimeout
		if cfg.DBURI != "" {
			u, err := url.Parse(cfg.DBURI)
			if err != nil {
				return "", "", fmt.Errorf("invalid DB_URI: %w", err)
			}
			mc.User = u.User.Username()
			mc.Passwd, _ = u.User.Password()
			mc.Addr = u.Host
			if u.Port() == "" {
				mc.Addr = net.JoinHostPort(u.Hostname(), strconv.Itoa(config.DefaultPort(config.DBTypeMySQL)))
			}
			mc.DBName = cfg.DBName
		} else {
			mc.User = cfg.DBUser
			mc.Passwd = cfg.DBPassword
			mc.Addr = net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort))
			mc.DBName = cfg.DBName
		}
		return "mysql", mc.FormatDSN(), nil

	default:
		return "", "", errors.New("not a relational data source: " + cfg.DBType)
	}
}

// Redact describes the data source without credentials, for logs.
func Redact(cfg *config.Config) string {
	switch {
	case cfg.DBType == config.DBTypeSQLite:
		return cfg.SQLitePath
	case cfg.DBURI != "":
		u, err := url.Parse(cfg.DBURI)
		if err != nil {
			return "<unparseable uri>"
		}
		return u.Redacted()
	default:
		return fmt.Sprintf("%s@%s:%d/%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
}
