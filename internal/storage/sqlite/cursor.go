package sqlite

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sandevgo/eqchat/internal/core"
)

// cursorPayload is the reversible content of a pagination token: the sort
// key of the last item of the previous page.
type cursorPayload struct {
	LastCreatedAt string `json:"last_created_at"`
	LastID        string `json:"last_id"`
}

func encodeCursor(createdAt time.Time, id int64) string {
	payload, _ := json.Marshal(cursorPayload{
		LastCreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
		LastID:        strconv.FormatInt(id, 10),
	})
	return base64.RawURLEncoding.EncodeToString(payload)
}

func decodeCursor(token string) (createdAt time.Time, id int64, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", core.ErrInvalidCursor, err)
	}

	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", core.ErrInvalidCursor, err)
	}

	createdAt, err = time.Parse(time.RFC3339Nano, p.LastCreatedAt)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: bad timestamp", core.ErrInvalidCursor)
	}

	id, err = strconv.ParseInt(p.LastID, 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: bad id", core.ErrInvalidCursor)
	}

	return createdAt, id, nil
}
