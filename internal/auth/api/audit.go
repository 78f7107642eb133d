package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRecorder writes best-effort audit rows for security-relevant events.
// A nil recorder is a no-op, which is how db-less development mode runs.
//
// Schema (managed outside this repo):
//
//	<schema>.auth_audit (
//	    user_id    text,
//	    action     text not null,
//	    created_at timestamptz not null default now(),
//	    ip         text,
//	    user_agent text,
//	    meta       jsonb
//	)
type AuditRecorder struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	schema string
}

// NewAuditRecorder constructs a recorder writing to <schema>.auth_audit.
func NewAuditRecorder(log *slog.Logger, pool *pgxpool.Pool, schema string) *AuditRecorder {
	if log == nil {
		log = slog.Default()
	}
	schema = strings.TrimSpace(schema)
	if schema == "" || !pgIdentOK(schema) {
		schema = "vidtube"
	}
	return &AuditRecorder{log: log, pool: pool, schema: schema}
}

// Record inserts one audit row. Failures are logged, never surfaced.
func (a *AuditRecorder) Record(ctx context.Context, action string, userID *string, ip net.IP, ua string, meta map[string]any) {
	if a == nil || a.pool == nil {
		return
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	var ipVal any
	if ip != nil {
		ipVal = ip.String()
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO `+a.schema+`.auth_audit (
			user_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, now(), $3, $4, $5::jsonb)
	`, userID, action, ipVal, trimOrNil(ua), metaVal)
	if err != nil {
		a.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func pgIdentOK(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return s != ""
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
