package shared

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	sql  string
	args []any
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestAuditLoggerRecord(t *testing.T) {
	db := &recordingExecer{}
	logger := NewAuditLogger(db)
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return at }

	err := logger.Record(context.Background(), AuditLog{
		Action:   "GRN_SUBMIT",
		Entity:   "goods_receipt",
		EntityID: "PO:42",
		Meta:     map[string]any{"lines": 2},
	})
	require.NoError(t, err)
	require.Contains(t, db.sql, "INSERT INTO audit_logs")
	require.Len(t, db.args, 6)
	require.Equal(t, "GRN_SUBMIT", db.args[1])
	require.Equal(t, at, db.args[5])

	var meta map[string]any
	require.NoError(t, json.Unmarshal(db.args[4].([]byte), &meta))
	require.EqualValues(t, 2, meta["lines"])
}

func TestAuditLoggerRejectsIncompleteLog(t *testing.T) {
	logger := NewAuditLogger(&recordingExecer{})
	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "GRN_SUBMIT"}))

	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "A", Entity: "B", EntityID: "C"}))
}
