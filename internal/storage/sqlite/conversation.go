package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/pkg/log"
)

// ConversationRepo is the append-only message log. Ordering is defined by
// (created_at, id): created_at carries nanosecond resolution and the
// autoincrement id breaks ties, so pagination has a total order.
type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Append(ctx context.Context, userID, role, content string) (string, error) {
	userID = core.NormalizeUserID(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user_id must not be empty", core.ErrValidation)
	}
	if !core.ValidRole(role) {
		return "", fmt.Errorf("%w: role must be one of user, assistant, system", core.ErrValidation)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content must not be empty", core.ErrValidation)
	}
	if utf8.RuneCountInString(content) > core.MaxContentLength {
		return "", fmt.Errorf("%w: content exceeds %d characters", core.ErrValidation, core.MaxContentLength)
	}

	msg := core.Message{
		UserID:    userID,
		MessageID: fmt.Sprintf("%s_%s", userID, uuid.NewString()),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	inserted, err := r.Insert(ctx, msg)
	if err != nil {
		return "", err
	}
	if !inserted {
		// A fresh uuid collided, which does not happen in practice.
		return "", fmt.Errorf("%w: duplicate message_id", core.ErrPersistence)
	}
	return msg.MessageID, nil
}

// Insert writes the message only when its message_id is absent. Redelivery
// of the same event is therefore a no-op after the first successful write.
func (r *ConversationRepo) Insert(ctx context.Context, msg core.Message) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, message_id, role, content, correlation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(message_id) DO NOTHING`,
		core.NormalizeUserID(msg.UserID), msg.MessageID, msg.Role, msg.Content,
		msg.CorrelationID, msg.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("%w: insert message: %v", core.ErrPersistence, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", core.ErrPersistence, err)
	}
	return n > 0, nil
}

func (r *ConversationRepo) Page(ctx context.Context, userID string, opts core.PageOptions) (core.Page, error) {
	userID = core.NormalizeUserID(userID)
	if opts.PageSize < 1 || opts.PageSize > 200 {
		return core.Page{}, fmt.Errorf("%w: page_size must be between 1 and 200", core.ErrValidation)
	}

	query := `SELECT id, user_id, message_id, role, content, correlation_id, created_at
		FROM messages WHERE user_id = ?`
	args := []any{userID}

	if opts.Cursor != "" {
		lastCreatedAt, lastID, err := decodeCursor(opts.Cursor)
		if err != nil {
			return core.Page{}, err
		}
		// Compound inequality, not an offset: rows appended between page
		// fetches cannot shift the boundary.
		if opts.NewestFirst {
			query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		} else {
			query += ` AND (created_at > ? OR (created_at = ? AND id > ?))`
		}
		ts := lastCreatedAt.UnixNano()
		args = append(args, ts, ts, lastID)
	}

	if opts.NewestFirst {
		query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	} else {
		query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	}
	// One extra row tells us whether a next page exists.
	args = append(args, opts.PageSize+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.Page{}, fmt.Errorf("%w: query messages: %v", core.ErrPersistence, err)
	}
	defer rows.Close()

	var items []core.Message
	for rows.Next() {
		var msg core.Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.MessageID, &msg.Role, &msg.Content, &msg.CorrelationID, &createdAt); err != nil {
			return core.Page{}, fmt.Errorf("%w: scan message: %v", core.ErrPersistence, err)
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return core.Page{}, fmt.Errorf("%w: iterate messages: %v", core.ErrPersistence, err)
	}

	page := core.Page{Items: items, PageSize: opts.PageSize}
	if len(items) > opts.PageSize {
		page.Items = items[:opts.PageSize]
		last := page.Items[len(page.Items)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	log.FromCtx(ctx).Debug().Int("count", len(page.Items)).Str("user_id", userID).Msg("paged conversation")
	return page, nil
}

func (r *ConversationRepo) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, core.NormalizeUserID(userID))
	if err != nil {
		return 0, fmt.Errorf("%w: delete messages: %v", core.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", core.ErrPersistence, err)
	}
	return n, nil
}
