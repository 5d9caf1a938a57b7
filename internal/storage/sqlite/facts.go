package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/eqchat/internal/core"
)

type FactRepo struct {
	db *sql.DB
}

func NewFactRepo(db *sql.DB) *FactRepo {
	return &FactRepo{db: db}
}

func (r *FactRepo) Add(ctx context.Context, fact core.Fact) (int64, error) {
	vecBlob, err := serializeVector(fact.Embedding)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}

	createdAt := fact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	source := fact.Source
	if source == "" {
		source = "extracted"
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO facts (user_id, content, embedding, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		core.NormalizeUserID(fact.UserID), fact.Content, vecBlob, source, createdAt.UTC().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert fact: %v", core.ErrPersistence, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %v", core.ErrPersistence, err)
	}
	return id, nil
}

// ListByUser returns facts newest-first. limit <= 0 means no limit.
func (r *FactRepo) ListByUser(ctx context.Context, userID string, limit int) ([]core.Fact, error) {
	query := `SELECT id, user_id, content, embedding, source, created_at
		FROM facts WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{core.NormalizeUserID(userID)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query facts: %v", core.ErrPersistence, err)
	}
	defer rows.Close()

	var facts []core.Fact
	for rows.Next() {
		var f core.Fact
		var blob []byte
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.UserID, &f.Content, &blob, &f.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan fact: %v", core.ErrPersistence, err)
		}
		f.Embedding, err = deserializeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrPersistence, err)
		}
		f.CreatedAt = time.Unix(0, createdAt).UTC()
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate facts: %v", core.ErrPersistence, err)
	}
	return facts, nil
}

func (r *FactRepo) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM facts WHERE user_id = ?`, core.NormalizeUserID(userID))
	if err != nil {
		return 0, fmt.Errorf("%w: delete facts: %v", core.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", core.ErrPersistence, err)
	}
	return n, nil
}
