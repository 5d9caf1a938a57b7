package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sandevgo/eqchat/internal/core"
)

type ToolLogRepo struct {
	db *sql.DB
}

func NewToolLogRepo(db *sql.DB) *ToolLogRepo {
	return &ToolLogRepo{db: db}
}

func (r *ToolLogRepo) LogSearch(ctx context.Context, userID, query string, results []core.SearchResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tool_logs (user_id, tool, query, results, created_at) VALUES (?, ?, ?, ?, ?)`,
		core.NormalizeUserID(userID), "web_search", query, string(data), time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert tool log: %v", core.ErrPersistence, err)
	}
	return nil
}

func (r *ToolLogRepo) ListRecent(ctx context.Context, userID string, limit int) ([]core.ToolLog, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, tool, query, results, created_at
		 FROM tool_logs WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		core.NormalizeUserID(userID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query tool logs: %v", core.ErrPersistence, err)
	}
	defer rows.Close()

	var logs []core.ToolLog
	for rows.Next() {
		var l core.ToolLog
		var results string
		var createdAt int64
		if err := rows.Scan(&l.ID, &l.UserID, &l.Tool, &l.Query, &results, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan tool log: %v", core.ErrPersistence, err)
		}
		if err := json.Unmarshal([]byte(results), &l.Results); err != nil {
			return nil, fmt.Errorf("%w: unmarshal results: %v", core.ErrPersistence, err)
		}
		l.CreatedAt = time.Unix(0, createdAt).UTC()
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate tool logs: %v", core.ErrPersistence, err)
	}
	return logs, nil
}
