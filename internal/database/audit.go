package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/carefinder-api/internal/queue"
)

const createAuthEvents = `CREATE TABLE IF NOT EXISTS auth_events (
  id          CHAR(36)     NOT NULL PRIMARY KEY,
  type        VARCHAR(32)  NOT NULL,
  username    VARCHAR(64)  NOT NULL,
  reason      VARCHAR(128) NOT NULL DEFAULT '',
  occurred_at DATETIME(3)  NOT NULL,
  KEY idx_auth_events_username (username, occurred_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// AuditStore writes auth events into the auth_events table.
type AuditStore struct{ DB *sql.DB }

func NewAuditStore(db *sql.DB) *AuditStore { return &AuditStore{DB: db} }

// EnsureSchema creates the table when missing.
func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, createAuthEvents); err != nil {
		return fmt.Errorf("create auth_events: %w", err)
	}
	return nil
}

// Write inserts ev. Redelivered messages carry the same id and are ignored.
func (s *AuditStore) Write(ctx context.Context, ev queue.AuthEvent) error {
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO auth_events (id, type, username, reason, occurred_at) VALUES (?,?,?,?,?)",
		ev.ID, ev.Type, ev.Username, ev.Reason, ev.OccurredAt)
	if isDuplicate(err) {
		return nil
	}
	return err
}

func isDuplicate(err error) bool {
	me, ok := err.(*mysql.MySQLError)
	return ok && me.Number == 1062
}
