package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Attachments returns the attachment rows joined to a message, in
// attachment rowid order. The ordinal position of each row pairs it with the matching
// object-replacement slot in the message text.
func (db *DB) Attachments(ctx context.Context, messageID int64) ([]AttachmentRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT a.ROWID, a.guid, a.filename, a.uti, a.mime_type, a.transfer_name,
		       a.total_bytes, a.transfer_state, a.is_sticker, a.is_outgoing,
		       a.hide_attachment, a.sticker_user_info
		FROM message_attachment_join j
		LEFT JOIN attachment a ON j.attachment_id = a.ROWID
		WHERE j.message_id = ?
		ORDER BY a.ROWID`, messageID)
	if err != nil {
		return nil, fmt.Errorf("scan attachments for message %d: %w", messageID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []AttachmentRow
	for rows.Next() {
		var (
			a        AttachmentRow
			guid     sql.NullString
			filename sql.NullString
			uti      sql.NullString
			mime     sql.NullString
			transfer sql.NullString
			bytes    sql.NullInt64
			state    sql.NullInt64
			sticker  sql.NullBool
			outgoing sql.NullBool
			hidden   sql.NullBool
		)
		if err := rows.Scan(&a.RowID, &guid, &filename, &uti, &mime, &transfer,
			&bytes, &state, &sticker, &outgoing, &hidden, &a.StickerInfo); err != nil {
			return nil, err
		}
		a.GUID = guid.String
		a.Filename = filename.String
		a.UTI = uti.String
		a.MimeType = mime.String
		a.TransferName = transfer.String
		a.TotalBytes = bytes.Int64
		a.TransferState = int(state.Int64)
		a.IsSticker = sticker.Bool
		a.IsOutgoing = outgoing.Bool
		a.Hidden = hidden.Bool
		out = append(out, a)
	}
	return out, rows.Err()
}
