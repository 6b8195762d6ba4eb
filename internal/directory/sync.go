// Package directory mirrors approved accounts into the company HR directory
// database so other internal tools see who can attend external events.
package directory

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"eventdesk/internal/config"
	"eventdesk/internal/models"
	"eventdesk/internal/store"
)

var identRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Exporter struct {
	db     *sql.DB
	driver string
	table  string
}

// NewExporter opens the directory database when configured. An empty driver
// or DSN disables the export and returns nil without error.
func NewExporter(cfg config.Config) (*Exporter, error) {
	driver := strings.TrimSpace(cfg.DirectoryDriver)
	dsn := strings.TrimSpace(cfg.DirectoryDSN)
	if driver == "" || dsn == "" {
		return nil, nil
	}
	if !identRx.MatchString(cfg.DirectoryTable) {
		return nil, fmt.Errorf("invalid SQL identifier %q", cfg.DirectoryTable)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Exporter{db: db, driver: driver, table: cfg.DirectoryTable}, nil
}

func (e *Exporter) Close() error { return e.db.Close() }

// UpsertEmployee writes one approved account keyed by external id. Update
// first, insert on zero rows; a duplicate race falls back to the update.
func (e *Exporter) UpsertEmployee(ctx context.Context, u models.User) error {
	// RANK is a reserved word in MySQL 8, so the column is always quoted.
	rankCol := e.quote("rank")
	updateQ := fmt.Sprintf(
		"UPDATE %s SET full_name=%s, email=%s, phone=%s, position=%s, %s=%s WHERE external_id=%s",
		e.table, e.ph(1), e.ph(2), e.ph(3), e.ph(4), rankCol, e.ph(5), e.ph(6),
	)
	updateArgs := []any{u.FullName, u.Email, u.Phone, u.Position, u.Rank, u.ExternalID}
	res, err := e.db.ExecContext(ctx, updateQ, updateArgs...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	insertQ := fmt.Sprintf(
		"INSERT INTO %s (external_id, full_name, email, phone, position, %s) VALUES (%s,%s,%s,%s,%s,%s)",
		e.table, rankCol, e.ph(1), e.ph(2), e.ph(3), e.ph(4), e.ph(5), e.ph(6),
	)
	if _, err := e.db.ExecContext(ctx, insertQ, u.ExternalID, u.FullName, u.Email, u.Phone, u.Position, u.Rank); err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "duplicate") || strings.Contains(low, "unique") {
			_, err = e.db.ExecContext(ctx, updateQ, updateArgs...)
		}
		return err
	}
	return nil
}

func (e *Exporter) ph(i int) string {
	if e.isPostgres() {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func (e *Exporter) quote(ident string) string {
	if e.isPostgres() {
		return `"` + ident + `"`
	}
	return "`" + ident + "`"
}

func (e *Exporter) isPostgres() bool {
	d := strings.ToLower(e.driver)
	return strings.Contains(d, "pgx") || strings.Contains(d, "postgres")
}

// Syncer reconciles the whole approved roster on an interval. Full sweeps
// keep the directory correct even when an individual upsert was missed.
type Syncer struct {
	st       *store.Store
	exporter *Exporter
	interval time.Duration
}

func NewSyncer(st *store.Store, exporter *Exporter, interval time.Duration) *Syncer {
	return &Syncer{st: st, exporter: exporter, interval: interval}
}

func (s *Syncer) RunOnce(ctx context.Context) error {
	const page = 200
	for offset := 0; ; offset += page {
		users, err := s.st.ListApprovedUsers(ctx, page, offset)
		if err != nil {
			return err
		}
		for _, u := range users {
			if err := s.exporter.UpsertEmployee(ctx, u); err != nil {
				log.Printf("directory upsert failed user=%s err=%v", u.ID, err)
			}
		}
		if len(users) < page {
			return nil
		}
	}
}

func (s *Syncer) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				log.Printf("directory sync failed err=%v", err)
			}
		}
	}
}
