package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/pocketsiem/internal/journal"
)

const decisionColumns = 12

const schemaSQL = `
CREATE TABLE IF NOT EXISTS alert_decisions (
	id          UUID PRIMARY KEY,
	trace_id    TEXT NOT NULL DEFAULT '',
	device_id   TEXT NOT NULL,
	alert_id    TEXT NOT NULL,
	app_name    TEXT NOT NULL,
	ip          TEXT NOT NULL,
	threat_type TEXT NOT NULL DEFAULT '',
	severity    TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	report_id   BIGINT,
	error       TEXT NOT NULL DEFAULT '',
	decided_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS alert_decisions_ip_idx ON alert_decisions (ip, decided_at DESC);`

// DecisionRepo — хранилище журнала решений по алертам.
type DecisionRepo struct {
	db *sql.DB
}

func NewDecisionRepo(connString string, maxConns int) (*DecisionRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &DecisionRepo{db: db}, nil
}

func (r *DecisionRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *DecisionRepo) Close() error {
	return r.db.Close()
}

// EnsureSchema создает таблицу журнала, если ее еще нет.
func (r *DecisionRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

func (r *DecisionRepo) WriteBatch(ctx context.Context, decisions []journal.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	query, args := buildDecisionInsert(decisions)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: write decisions: %w", err)
	}
	return nil
}

// buildDecisionInsert строит пакетный INSERT на все решения сразу.
func buildDecisionInsert(decisions []journal.Decision) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(decisions)*decisionColumns)

	for i, d := range decisions {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 1; c <= decisionColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*decisionColumns+c)
		}
		sb.WriteString(")")

		var reportID sql.NullInt64
		if d.ReportID != nil {
			reportID = sql.NullInt64{Int64: *d.ReportID, Valid: true}
		}
		args = append(args,
			d.ID, d.TraceID, d.DeviceID, d.AlertID, d.AppName, d.IP,
			d.ThreatType, d.Severity, string(d.Action), reportID, d.Error, d.DecidedAt,
		)
	}

	query := "INSERT INTO alert_decisions (id, trace_id, device_id, alert_id, app_name, ip, threat_type, severity, action, report_id, error, decided_at) VALUES " +
		sb.String() + " ON CONFLICT (id) DO NOTHING"
	return query, args
}

// blockedIPsQuery: из решений по адресу учитываются только block/unblock,
// "allow" по новому алерту блокировку не снимает.
const blockedIPsQuery = `
		SELECT ip FROM (
			SELECT DISTINCT ON (ip) ip, action
			FROM alert_decisions
			WHERE action IN ($1, $2)
			ORDER BY ip, decided_at DESC
		) latest
		WHERE action = $1`

// BlockedIPs — адреса, последнее решение по которым было "block".
func (r *DecisionRepo) BlockedIPs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, blockedIPsQuery, string(journal.ActionBlock), string(journal.ActionUnblock))
	if err != nil {
		return nil, fmt.Errorf("postgres: blocked ips: %w", err)
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}

// Recent — последние решения, новые первыми.
func (r *DecisionRepo) Recent(ctx context.Context, limit int) ([]journal.Decision, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trace_id, device_id, alert_id, app_name, ip, threat_type, severity, action, report_id, error, decided_at
		FROM alert_decisions
		ORDER BY decided_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent decisions: %w", err)
	}
	defer rows.Close()

	var out []journal.Decision
	for rows.Next() {
		var (
			d        journal.Decision
			action   string
			reportID sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &d.TraceID, &d.DeviceID, &d.AlertID, &d.AppName, &d.IP,
			&d.ThreatType, &d.Severity, &action, &reportID, &d.Error, &d.DecidedAt); err != nil {
			return nil, err
		}
		d.Action = journal.Action(action)
		if reportID.Valid {
			id := reportID.Int64
			d.ReportID = &id
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
