// Package storage persists usage and tool-call audit records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/franktheglock/openllm/model"
)

// DatabaseName is the audit database file inside the data directory.
const DatabaseName = "bot.db"

// column is one migratable column of a table.
type column struct {
	name string
	decl string
}

// Columns added after the first release. Older databases gain them on open.
var migrations = map[string][]column{
	"usage_stats": {
		{"channel_id", "TEXT DEFAULT ''"},
		{"cost_usd", "REAL DEFAULT 0"},
	},
	"tool_calls": {
		{"channel_id", "TEXT DEFAULT ''"},
		{"error_message", "TEXT DEFAULT ''"},
	},
}

// ToolCall is a stored tool-call record.
type ToolCall struct {
	ID int64 `json:"id"`
	model.ToolCallRecord
	Timestamp time.Time `json:"timestamp"`
}

// UsageTotals aggregates usage records.
type UsageTotals struct {
	Turns      int     `json:"turns"`
	TokensUsed int     `json:"tokens_used"`
	CostUSD    float64 `json:"cost_usd"`
}

// AuditStore implements model.AuditLogger on SQLite.
type AuditStore struct {
	db *sql.DB
}

var _ model.AuditLogger = (*AuditStore)(nil)

// NewAuditStore opens (creating if needed) dataDir/bot.db.
func NewAuditStore(dataDir string) (*AuditStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Open(filepath.Join(dataDir, DatabaseName))
}

// Open opens the audit database at dbPath.
func Open(dbPath string) (*AuditStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &AuditStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	slog.Debug("audit store opened", "component", "storage", "path", dbPath)
	return s, nil
}

func (s *AuditStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT,
		user_id TEXT,
		provider TEXT,
		model TEXT,
		tokens_used INTEGER,
		cost_usd REAL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS tool_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT,
		user_id TEXT,
		tool_name TEXT,
		parameters TEXT,
		result TEXT,
		success INTEGER,
		error_message TEXT,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	// Indexes reference migrated columns, so they come last.
	_, err := s.db.Exec(`
	CREATE INDEX IF NOT EXISTS idx_usage_channel ON usage_stats(channel_id);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_timestamp ON tool_calls(timestamp);
	`)
	return err
}

// migrateSchema adds missing columns to existing databases.
func (s *AuditStore) migrateSchema() error {
	for _, table := range []string{"usage_stats", "tool_calls"} {
		for _, col := range migrations[table] {
			exists, err := s.columnExists(table, col.name)
			if err != nil {
				return fmt.Errorf("failed to check for %s.%s column: %w", table, col.name, err)
			}
			if exists {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.decl)
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to add %s.%s column: %w", table, col.name, err)
			}
			slog.Info("migrated audit schema", "component", "storage", "table", table, "column", col.name)
		}
	}
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (s *AuditStore) columnExists(table, name string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if colName == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

// LogUsage records one completed turn.
func (s *AuditStore) LogUsage(ctx context.Context, rec model.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_stats (channel_id, user_id, provider, model, tokens_used, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ChannelID, rec.UserID, rec.Provider, rec.Model, rec.TokensUsed, rec.CostUSD)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// LogToolCall records one executed tool call.
func (s *AuditStore) LogToolCall(ctx context.Context, rec model.ToolCallRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (channel_id, user_id, tool_name, parameters, result, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ChannelID, rec.UserID, rec.ToolName, rec.Parameters, rec.Result, rec.Success, rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert tool call: %w", err)
	}
	return nil
}

// UsageTotals sums usage for channelID, or for every channel when it is empty.
func (s *AuditStore) UsageTotals(ctx context.Context, channelID string) (UsageTotals, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(tokens_used), 0), COALESCE(SUM(cost_usd), 0) FROM usage_stats`
	var args []any
	if channelID != "" {
		query += ` WHERE channel_id = ?`
		args = append(args, channelID)
	}

	var t UsageTotals
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&t.Turns, &t.TokensUsed, &t.CostUSD); err != nil {
		return UsageTotals{}, fmt.Errorf("failed to query usage totals: %w", err)
	}
	return t, nil
}

// RecentToolCalls returns up to limit tool calls, newest first.
func (s *AuditStore) RecentToolCalls(ctx context.Context, limit int) ([]ToolCall, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(channel_id, ''), COALESCE(user_id, ''), COALESCE(tool_name, ''),
		       COALESCE(parameters, ''), COALESCE(result, ''), COALESCE(success, 0),
		       COALESCE(error_message, ''), timestamp
		FROM tool_calls
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	calls := []ToolCall{}
	for rows.Next() {
		var (
			tc      ToolCall
			success int
			ts      any
		)
		err := rows.Scan(&tc.ID, &tc.ChannelID, &tc.UserID, &tc.ToolName,
			&tc.Parameters, &tc.Result, &success, &tc.ErrorMessage, &ts)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		tc.Success = success != 0
		tc.Timestamp = parseTimestamp(ts)
		calls = append(calls, tc)
	}
	return calls, rows.Err()
}

// parseTimestamp accepts both driver-decoded times and CURRENT_TIMESTAMP text.
func parseTimestamp(v any) time.Time {
	switch ts := v.(type) {
	case time.Time:
		return ts
	case string:
		if t, err := time.Parse(time.DateTime, ts); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
	case []byte:
		return parseTimestamp(string(ts))
	}
	return time.Time{}
}

// Close closes the database connection.
func (s *AuditStore) Close() error {
	if s == nil || s.db == nil {
		return errors.New("audit store not open")
	}
	return s.db.Close()
}
