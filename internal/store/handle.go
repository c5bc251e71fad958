package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Handles scans the full handle table in rowid order.
func (db *DB) Handles(ctx context.Context) ([]HandleRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ROWID, id, service, person_centric_id FROM handle ORDER BY ROWID`)
	if err != nil {
		return nil, fmt.Errorf("scan handles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []HandleRow
	for rows.Next() {
		var (
			h       HandleRow
			service sql.NullString
			pcid    sql.NullString
		)
		if err := rows.Scan(&h.RowID, &h.Address, &service, &pcid); err != nil {
			return nil, err
		}
		h.Service = service.String
		h.PersonCentricID = pcid.String
		out = append(out, h)
	}
	return out, rows.Err()
}
