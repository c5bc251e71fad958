package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Chats loads every chat row keyed by rowid. Chat rows contain duplicates
// of the same logical conversation; deduplication needs the participant
// sets and happens in the entity graph.
func (db *DB) Chats(ctx context.Context) (map[int64]ChatRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ROWID, chat_identifier, service_name, display_name, style FROM chat`)
	if err != nil {
		return nil, fmt.Errorf("scan chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]ChatRow)
	for rows.Next() {
		var (
			c       ChatRow
			service sql.NullString
			display sql.NullString
			style   sql.NullInt64
		)
		if err := rows.Scan(&c.RowID, &c.Identifier, &service, &display, &style); err != nil {
			return nil, err
		}
		c.ServiceName = service.String
		c.DisplayName = display.String
		c.Style = int(style.Int64)
		out[c.RowID] = c
	}
	return out, rows.Err()
}

// ChatParticipants loads the chat_handle_join table as an ordered list of
// handle ids per chat. Order follows handle rowid so a participant set has
// one canonical sequence.
func (db *DB) ChatParticipants(ctx context.Context) (map[int64][]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT chat_id, handle_id FROM chat_handle_join ORDER BY chat_id, handle_id`)
	if err != nil {
		return nil, fmt.Errorf("scan chat participants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64][]int64)
	for rows.Next() {
		var chatID, handleID int64
		if err := rows.Scan(&chatID, &handleID); err != nil {
			return nil, err
		}
		out[chatID] = append(out[chatID], handleID)
	}
	return out, rows.Err()
}
