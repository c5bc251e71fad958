package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// QueryContext bounds a message traversal. Bounds are raw store timestamps
// and apply half-open: start <= date < end.
type QueryContext struct {
	Start *int64
	End   *int64
}

// HasFilters reports whether any bound is set.
func (qc QueryContext) HasFilters() bool { return qc.Start != nil || qc.End != nil }

// InRange reports whether a raw timestamp falls inside the window.
func (qc QueryContext) InRange(date int64) bool {
	if qc.Start != nil && date < *qc.Start {
		return false
	}
	if qc.End != nil && date >= *qc.End {
		return false
	}
	return true
}

// venturaColumns selects every message column the assembler consumes; the
// legacy variant substitutes constants for columns older stores lack.
const venturaColumns = `
	m.ROWID, m.guid, m.text, m.service, m.subject, m.handle_id,
	m.date, m.date_read, m.date_delivered, m.date_edited, m.date_retracted,
	m.is_from_me, m.is_read, m.is_delivered, m.is_finished,
	m.is_audio_message, m.is_played, m.is_spam, m.item_type,
	m.group_title, m.group_action_type,
	m.associated_message_guid, m.associated_message_type,
	m.balloon_bundle_id, m.expressive_send_style_id,
	m.thread_originator_guid, m.thread_originator_part,
	m.attributedBody, m.payload_data, m.message_summary_info,
	c.chat_id,
	(SELECT COUNT(*) FROM message_attachment_join a WHERE m.ROWID = a.message_id) AS num_attachments,
	(SELECT COUNT(*) FROM message m2 WHERE m2.thread_originator_guid = m.guid) AS num_replies`

const legacyColumns = `
	m.ROWID, m.guid, m.text, m.service, m.subject, m.handle_id,
	m.date, m.date_read, m.date_delivered, 0, 0,
	m.is_from_me, m.is_read, m.is_delivered, m.is_finished,
	m.is_audio_message, m.is_played, 0, m.item_type,
	m.group_title, m.group_action_type,
	m.associated_message_guid, m.associated_message_type,
	m.balloon_bundle_id, m.expressive_send_style_id,
	NULL, NULL,
	m.attributedBody, m.payload_data, m.message_summary_info,
	c.chat_id,
	(SELECT COUNT(*) FROM message_attachment_join a WHERE m.ROWID = a.message_id) AS num_attachments,
	0 AS num_replies`

func (db *DB) messageColumns() string {
	if db.hasThreads {
		return venturaColumns
	}
	return legacyColumns
}

func scanMessage(rows interface{ Scan(...any) error }) (*MessageRow, error) {
	var (
		m             MessageRow
		text          sql.NullString
		service       sql.NullString
		subject       sql.NullString
		handleID      sql.NullInt64
		dateRead      sql.NullInt64
		dateDelivered sql.NullInt64
		dateEdited    sql.NullInt64
		dateRetracted sql.NullInt64
		groupTitle    sql.NullString
		groupAction   sql.NullInt64
		assocGUID     sql.NullString
		assocType     sql.NullInt64
		balloon       sql.NullString
		expressive    sql.NullString
		threadGUID    sql.NullString
		threadPart    sql.NullString
		chatID        sql.NullInt64
	)
	err := rows.Scan(
		&m.RowID, &m.GUID, &text, &service, &subject, &handleID,
		&m.Date, &dateRead, &dateDelivered, &dateEdited, &dateRetracted,
		&m.IsFromMe, &m.IsRead, &m.IsDelivered, &m.IsFinished,
		&m.IsAudio, &m.IsPlayed, &m.IsSpam, &m.ItemType,
		&groupTitle, &groupAction,
		&assocGUID, &assocType,
		&balloon, &expressive,
		&threadGUID, &threadPart,
		&m.AttributedBody, &m.PayloadData, &m.SummaryInfo,
		&chatID,
		&m.NumAttachments, &m.NumReplies,
	)
	if err != nil {
		return nil, err
	}
	m.Text, m.HasText = text.String, text.Valid
	m.Service = service.String
	m.Subject = subject.String
	m.HandleID = handleID.Int64
	m.DateRead = dateRead.Int64
	m.DateDelivered = dateDelivered.Int64
	m.DateEdited = dateEdited.Int64
	m.WasUnsent = dateRetracted.Int64 != 0
	m.GroupTitle = groupTitle.String
	m.GroupActionType = int(groupAction.Int64)
	m.AssociatedGUID = assocGUID.String
	m.AssociatedType = int(assocType.Int64)
	m.BalloonBundle = balloon.String
	m.ExpressiveID = expressive.String
	m.ThreadOriginatorGUID = threadGUID.String
	m.ThreadOriginatorPart = threadPart.String
	m.ChatID, m.HasChat = chatID.Int64, chatID.Valid
	return &m, nil
}

// MessageIter is a single-pass forward cursor over message rows in
// (date ASC, rowid ASC) order. It is not restartable; dropping it between
// items is the cancellation mechanism.
type MessageIter struct {
	ctx  context.Context
	rows *sql.Rows
	cur  *MessageRow
	err  error
}

// StreamMessages opens a streaming cursor over the message table, bounded
// by the query context.
func (db *DB) StreamMessages(ctx context.Context, qc QueryContext) (*MessageIter, error) {
	var (
		where []string
		args  []any
	)
	if qc.Start != nil {
		where = append(where, "m.date >= ?")
		args = append(args, *qc.Start)
	}
	if qc.End != nil {
		where = append(where, "m.date < ?")
		args = append(args, *qc.End)
	}
	query := fmt.Sprintf(
		`SELECT %s FROM message m
		 LEFT JOIN chat_message_join c ON m.ROWID = c.message_id`,
		db.messageColumns(),
	)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.date ASC, m.ROWID ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stream messages: %w", err)
	}
	return &MessageIter{ctx: ctx, rows: rows}, nil
}

// Next advances the cursor. It returns false at the end of the result set,
// on error, or once the context is cancelled.
func (it *MessageIter) Next() bool {
	if it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		_ = it.rows.Close()
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	it.cur, it.err = scanMessage(it.rows)
	return it.err == nil
}

// Row returns the current row.
func (it *MessageIter) Row() *MessageRow { return it.cur }

// Err returns the first error encountered, if any.
func (it *MessageIter) Err() error { return it.err }

// Close releases the cursor.
func (it *MessageIter) Close() error { return it.rows.Close() }

// CountMessages returns the number of rows the query context selects.
func (db *DB) CountMessages(ctx context.Context, qc QueryContext) (int64, error) {
	var (
		where []string
		args  []any
	)
	if qc.Start != nil {
		where = append(where, "date >= ?")
		args = append(args, *qc.Start)
	}
	if qc.End != nil {
		where = append(where, "date < ?")
		args = append(args, *qc.End)
	}
	query := "SELECT COUNT(*) FROM message"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	var n int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ByGUID looks up one message by its globally-unique id through the LRU.
// Returns nil without error when no such message exists.
func (db *DB) ByGUID(ctx context.Context, guid string) (*MessageRow, error) {
	if m, ok := db.guids.Get(guid); ok {
		return m, nil
	}
	query := fmt.Sprintf(
		`SELECT %s FROM message m
		 LEFT JOIN chat_message_join c ON m.ROWID = c.message_id
		 WHERE m.guid = ?`,
		db.messageColumns(),
	)
	row := db.QueryRowContext(ctx, query, guid)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup guid %s: %w", guid, err)
	}
	db.guids.Add(guid, m)
	return m, nil
}

// AssociatedMessages returns every row that targets another message
// (tapbacks, stickers, app responses), in (date, rowid) order. The
// assembler indexes them by target guid and part.
func (db *DB) AssociatedMessages(ctx context.Context) ([]*MessageRow, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM message m
		 LEFT JOIN chat_message_join c ON m.ROWID = c.message_id
		 WHERE m.associated_message_guid IS NOT NULL
		 ORDER BY m.date ASC, m.ROWID ASC`,
		db.messageColumns(),
	)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load associated messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*MessageRow
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RepliesTo returns the thread replies anchored on the given guid, in
// (date, rowid) order.
func (db *DB) RepliesTo(ctx context.Context, guid string) ([]*MessageRow, error) {
	if !db.hasThreads {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT %s FROM message m
		 LEFT JOIN chat_message_join c ON m.ROWID = c.message_id
		 WHERE m.thread_originator_guid = ?
		 ORDER BY m.date ASC, m.ROWID ASC`,
		db.messageColumns(),
	)
	rows, err := db.QueryContext(ctx, query, guid)
	if err != nil {
		return nil, fmt.Errorf("load replies for %s: %w", guid, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*MessageRow
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
