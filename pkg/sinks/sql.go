package sinks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/samvad-hq/news-archiver/internal/domain"
)

// Opener opens a database handle; sql.Open in production, sqlmock in tests.
type Opener func(driver, dsn string) (*sql.DB, error)

// dialect captures the per-driver parts of the upsert statement.
type dialect struct {
	defaultPort string
	placeholder func(n int) string
	quote       func(ident string) string
	onConflict  string
}

var dialects = map[string]dialect{
	DriverMySQL: {
		defaultPort: "3306",
		placeholder: func(int) string { return "?" },
		quote:       func(ident string) string { return "`" + ident + "`" },
		onConflict:  "ON DUPLICATE KEY UPDATE title=VALUES(title)",
	},
	DriverPostgres: {
		defaultPort: "5432",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		quote:       pq.QuoteIdentifier,
		onConflict:  "ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title",
	},
}

// sqlSink upserts batches into a news_articles table. Every Save opens its own
// connection and closes it before returning.
type sqlSink struct {
	id      string
	cfg     SQLTargetConfig
	dialect dialect
	open    Opener
	log     Logger
}

func newSQLSink(_ context.Context, cfg TargetConfig, log Logger) (Sink, error) {
	return newSQLSinkWithOpener(cfg, sql.Open, log)
}

func newSQLSinkWithOpener(cfg TargetConfig, open Opener, log Logger) (*sqlSink, error) {
	if cfg.SQL == nil {
		return nil, fmt.Errorf("sink %q missing sql configuration", cfg.ID)
	}
	d, ok := dialects[cfg.SQL.Driver]
	if !ok {
		return nil, fmt.Errorf("sink %q: unsupported sql driver %q", cfg.ID, cfg.SQL.Driver)
	}
	if open == nil {
		open = sql.Open
	}
	return &sqlSink{
		id:      cfg.ID,
		cfg:     *cfg.SQL,
		dialect: d,
		open:    open,
		log:     ensureLogger(log),
	}, nil
}

func (s *sqlSink) ID() string     { return s.id }
func (s *sqlSink) Type() string   { return TypeSQL }
func (s *sqlSink) Target() string { return s.cfg.Database }

// Save writes batch in a single multi-row upsert. On a primary key conflict
// only the title is overwritten.
func (s *sqlSink) Save(ctx context.Context, batch domain.Batch) (err error) {
	if len(batch) == 0 {
		return nil
	}
	if missing := s.missingParams(); len(missing) > 0 {
		return fmt.Errorf("connect %s: missing connection parameters: %s", s.cfg.Driver, strings.Join(missing, ", "))
	}

	db, err := s.open(s.cfg.Driver, s.dsn())
	if err != nil {
		return fmt.Errorf("open %s connection: %w", s.cfg.Driver, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close connection: %w", cerr))
		}
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	query, args := s.upsertStatement(batch)
	s.log.DebugObj("sql sink executing upsert", "sql_upsert", map[string]any{
		"sink_id":  s.id,
		"database": s.cfg.Database,
		"rows":     len(batch),
	})
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(fmt.Errorf("execute upsert: %w", err), fmt.Errorf("rollback: %w", rbErr))
		}
		return fmt.Errorf("execute upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *sqlSink) missingParams() []string {
	var missing []string
	for _, p := range []struct{ name, val string }{
		{"host", s.cfg.Host},
		{"user", s.cfg.User},
		{"database", s.cfg.Database},
	} {
		if strings.TrimSpace(p.val) == "" {
			missing = append(missing, p.name)
		}
	}
	return missing
}

func (s *sqlSink) upsertStatement(batch domain.Batch) (string, []any) {
	const cols = 4
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (id, date, time, title) VALUES ", s.dialect.quote(s.cfg.Table))

	args := make([]any, 0, len(batch)*cols)
	for i, a := range batch {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.dialect.placeholder(i*cols + c + 1))
		}
		b.WriteByte(')')
		args = append(args, a.ID, a.Date, a.Time, a.Title)
	}
	b.WriteByte(' ')
	b.WriteString(s.dialect.onConflict)
	return b.String(), args
}

func (s *sqlSink) dsn() string {
	port := s.cfg.Port
	if port == "" {
		port = s.dialect.defaultPort
	}
	addr := net.JoinHostPort(s.cfg.Host, port)

	switch s.cfg.Driver {
	case DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.User(s.cfg.User),
			Host:   addr,
			Path:   "/" + s.cfg.Database,
		}
		if s.cfg.Password != "" {
			u.User = url.UserPassword(s.cfg.User, s.cfg.Password)
		}
		q := url.Values{}
		for k, v := range s.cfg.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		return u.String()
	default:
		mc := mysql.NewConfig()
		mc.User = s.cfg.User
		mc.Passwd = s.cfg.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = s.cfg.Database
		if len(s.cfg.Params) > 0 {
			mc.Params = make(map[string]string, len(s.cfg.Params))
			for k, v := range s.cfg.Params {
				mc.Params[k] = v
			}
		}
		return mc.FormatDSN()
	}
}
