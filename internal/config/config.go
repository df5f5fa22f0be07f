package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/history"
	"mostracker/internal/notify"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const DefaultFile = "config.json5"

const (
	BackendCSV    = "csv"
	BackendSqlite = "sqlite"
	BackendLibsql = "libsql"
)

type Store struct {
	// Backend is one of csv, sqlite or libsql.
	Backend   string `json:"backend"`
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

type Twitter struct {
	BaseUrl     string `json:"base_url"`
	BearerToken string `json:"bearer_token"`
	TimeoutSecs int    `json:"timeout_secs"`
}

type Instagram struct {
	BaseUrl          string `json:"base_url"`
	UserAgent        string `json:"user_agent"`
	TimeoutSecs      int    `json:"timeout_secs"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

type Server struct {
	Port           int    `json:"port"`
	RefreshMinutes int    `json:"refresh_minutes"`
	PollCron       string `json:"poll_cron"`
}

type Config struct {
	Timezone  string           `json:"timezone"`
	Roster    string           `json:"roster"`
	LogLevel  string           `json:"log_level"`
	LogJson   bool             `json:"log_json"`
	Store     Store            `json:"store"`
	Twitter   Twitter          `json:"twitter"`
	Instagram Instagram        `json:"instagram"`
	Server    Server           `json:"server"`
	Telemetry telemetry.Config `json:"telemetry"`
	Notify    notify.Config    `json:"notify"`
}

func Default() Config {
	return Config{
		Roster:   "officials.csv",
		LogLevel: "info",
		Store: Store{
			Backend: BackendCSV,
			File:    "data.csv",
		},
		Server: Server{
			Port:           8501,
			RefreshMinutes: 5,
			PollCron:       "0 9 * * *",
		},
	}
}

// Load reads the layered config file and fills in defaults for whatever it
// leaves unset. A missing file is not an error, the defaults are used.
// TWITTER_BEARER_TOKEN overrides the configured bearer token.
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := ReadLayered[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	err = mergo.Merge(&cfg, file, mergo.WithOverride)
	if err != nil {
		return cfg, err
	}

	if token, ok := os.LookupEnv("TWITTER_BEARER_TOKEN"); ok && token != "" {
		cfg.Twitter.BearerToken = token
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendCSV, BackendSqlite:
		if c.Store.File == "" {
			return fmt.Errorf("store.file is required for the %s backend", c.Store.Backend)
		}
	case BackendLibsql:
		if c.Store.Url == "" {
			return fmt.Errorf("store.url is required for the libsql backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Roster == "" {
		return fmt.Errorf("roster is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.RefreshMinutes <= 0 {
		return fmt.Errorf("server.refresh_minutes must be positive")
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (t Twitter) Timeout() time.Duration {
	return seconds(t.TimeoutSecs)
}

func (i Instagram) Timeout() time.Duration {
	return seconds(i.TimeoutSecs)
}

func openSqlite(file string) (*sql.DB, error) {
	err := os.MkdirAll(filepath.Dir(file), 0755)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, err
	}
	// sqlite only allows one writer at a time
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openLibsql(rawUrl, authToken string) (*sql.DB, error) {
	if authToken == "" {
		return sql.Open("libsql", rawUrl)
	}
	values := url.Values{}
	values.Add("authToken", authToken)
	return sql.Open("libsql", rawUrl+"?"+values.Encode())
}

// OpenBackend opens the configured storage. The returned close function
// releases the database connection of sql backends.
func (s Store) OpenBackend(ctx context.Context) (history.Backend, func() error, error) {
	noop := func() error { return nil }

	var db *sql.DB
	var err error
	switch s.Backend {
	case BackendCSV:
		return history.NewCSVFile(s.File), noop, nil
	case BackendSqlite:
		db, err = openSqlite(s.File)
	case BackendLibsql:
		db, err = openLibsql(s.Url, s.AuthToken)
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", s.Backend)
	}
	if err != nil {
		return nil, noop, err
	}

	backend, err := history.OpenSQL(ctx, s.Backend, db)
	if err != nil {
		db.Close()
		return nil, noop, err
	}
	return backend, db.Close, nil
}
