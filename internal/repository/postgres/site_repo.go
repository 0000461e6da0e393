// Package postgres is the relational substitute for the JSON snapshot
// registry. Row-level locking (SELECT ... FOR UPDATE) serializes every
// read-modify-write on a record, and the unique index on url enforces
// registration uniqueness.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sitewatch/sitewatch/internal/domain/site"
)

type SiteRepo struct {
	db *DB
}

var _ site.Store = (*SiteRepo)(nil)

func NewSiteRepo(db *DB) *SiteRepo { return &SiteRepo{db: db} }

const siteCols = `
id, name, url, status, status_code, response_time_ms,
last_checked, last_online, last_offline,
check_interval, is_active, created_at,
uptime_percentage, total_checks, successful_checks, failed_checks,
tls_issuer, tls_subject, tls_valid_from, tls_valid_to,
domain_expires, error_message`

const (
	qList = `SELECT ` + siteCols + ` FROM sites ORDER BY created_at, id;`

	qGetByID = `SELECT ` + siteCols + ` FROM sites WHERE id = $1;`

	qGetForUpdate = `SELECT ` + siteCols + ` FROM sites WHERE id = $1 FOR UPDATE;`

	qInsert = `
INSERT INTO sites (id, name, url, status, check_interval, is_active, created_at, uptime_percentage)
VALUES ($1, $2, $3, $4, $5, TRUE, $6, 100)
RETURNING ` + siteCols + `;`

	qDelete = `DELETE FROM sites WHERE id = $1;`

	qSave = `
UPDATE sites SET
    name = $2, url = $3, status = $4, status_code = $5, response_time_ms = $6,
    last_checked = $7, last_online = $8, last_offline = $9,
    check_interval = $10, is_active = $11,
    uptime_percentage = $12, total_checks = $13, successful_checks = $14, failed_checks = $15,
    tls_issuer = $16, tls_subject = $17, tls_valid_from = $18, tls_valid_to = $19,
    domain_expires = $20, error_message = $21
WHERE id = $1;`
)

func scanSite(row pgx.Row, s *site.Site) error {
	var (
		tlsIssuer, tlsSubject    *string
		tlsValidFrom, tlsValidTo *time.Time
	)
	if err := row.Scan(
		&s.ID, &s.Name, &s.URL, &s.Status, &s.StatusCode, &s.ResponseTimeMs,
		&s.LastChecked, &s.LastOnline, &s.LastOffline,
		&s.CheckInterval, &s.Active, &s.CreatedAt,
		&s.UptimePercentage, &s.TotalChecks, &s.SuccessfulChecks, &s.FailedChecks,
		&tlsIssuer, &tlsSubject, &tlsValidFrom, &tlsValidTo,
		&s.DomainExpires, &s.ErrorMessage,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return site.ErrNotFound
		}
		return fmt.Errorf("scan site: %w", err)
	}
	if tlsIssuer != nil || tlsSubject != nil {
		s.TLS = &site.TLSInfo{}
		if tlsIssuer != nil {
			s.TLS.Issuer = *tlsIssuer
		}
		if tlsSubject != nil {
			s.TLS.Subject = *tlsSubject
		}
		if tlsValidFrom != nil {
			s.TLS.ValidFrom = *tlsValidFrom
		}
		if tlsValidTo != nil {
			s.TLS.ValidTo = *tlsValidTo
		}
	}
	return nil
}

func saveArgs(s *site.Site) []any {
	var (
		tlsIssuer, tlsSubject    *string
		tlsValidFrom, tlsValidTo *time.Time
	)
	if s.TLS != nil {
		tlsIssuer = &s.TLS.Issuer
		tlsSubject = &s.TLS.Subject
		tlsValidFrom = &s.TLS.ValidFrom
		tlsValidTo = &s.TLS.ValidTo
	}
	return []any{
		s.ID, s.Name, s.URL, s.Status, s.StatusCode, s.ResponseTimeMs,
		s.LastChecked, s.LastOnline, s.LastOffline,
		s.CheckInterval, s.Active,
		s.UptimePercentage, s.TotalChecks, s.SuccessfulChecks, s.FailedChecks,
		tlsIssuer, tlsSubject, tlsValidFrom, tlsValidTo,
		s.DomainExpires, s.ErrorMessage,
	}
}

// mapWriteErr translates a unique-index violation on url into the
// domain conflict error.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", site.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func (r *SiteRepo) List(ctx context.Context) ([]*site.Site, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qList)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var out []*site.Site
	for rows.Next() {
		var s site.Site
		if err := scanSite(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *SiteRepo) GetByID(ctx context.Context, id string) (*site.Site, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s site.Site
	if err := scanSite(r.db.Pool.QueryRow(ctx, qGetByID, id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SiteRepo) Create(ctx context.Context, n site.NewSite) (*site.Site, error) {
	u, err := site.NormalizeURL(n.URL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s site.Site
	row := r.db.Pool.QueryRow(ctx, qInsert,
		uuid.NewString(), n.Name, u, site.StatusPending,
		site.ClampInterval(n.CheckInterval), time.Now().UTC(),
	)
	if err := scanSite(row, &s); err != nil {
		return nil, mapWriteErr(err)
	}
	return &s, nil
}

func (r *SiteRepo) Update(ctx context.Context, id string, upd site.Update) (*site.Site, error) {
	var newURL string
	if upd.URL != nil {
		u, err := site.NormalizeURL(*upd.URL)
		if err != nil {
			return nil, err
		}
		newURL = u
	}
	return r.Mutate(ctx, id, func(s *site.Site) error {
		if upd.URL != nil {
			s.URL = newURL
		}
		if upd.Name != nil {
			s.Name = *upd.Name
		}
		if upd.CheckInterval != nil {
			s.CheckInterval = site.ClampInterval(*upd.CheckInterval)
		}
		if upd.Active != nil {
			s.Active = *upd.Active
		}
		return nil
	})
}

func (r *SiteRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Pool.Exec(ctx, qDelete, id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return site.ErrNotFound
	}
	return nil
}

// Mutate runs the read-modify-write inside one transaction with the row
// locked, so concurrent mutations of the same site serialize and the
// second observes the first's committed state.
func (r *SiteRepo) Mutate(ctx context.Context, id string, fn func(*site.Site) error) (*site.Site, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var s site.Site
	if err := scanSite(tx.QueryRow(ctx, qGetForUpdate, id), &s); err != nil {
		return nil, err
	}
	if err := fn(&s); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, qSave, saveArgs(&s)...); err != nil {
		return nil, mapWriteErr(fmt.Errorf("save site: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &s, nil
}
