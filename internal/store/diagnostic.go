package store

import (
	"context"
	"fmt"
	"os"
)

// DiagnosticReport summarises store health checks.
type DiagnosticReport struct {
	TotalMessages     int64
	DanglingMessages  int64
	MultiChatMessages int64
	DuplicatedHandles int64
	MissingFiles      int64
}

// Diagnostics runs the health queries: messages not joined to any chat,
// messages joined to more than one, handles collapsed by person-centric
// id, and attachment rows whose file is absent. resolve maps an attachment
// filename to its absolute path.
func (db *DB) Diagnostics(ctx context.Context, resolve func(string) string) (*DiagnosticReport, error) {
	report := &DiagnosticReport{}

	scans := []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM message`, &report.TotalMessages},
		{`SELECT COUNT(m.ROWID) FROM message m
		  LEFT JOIN chat_message_join c ON m.ROWID = c.message_id
		  WHERE c.chat_id IS NULL`, &report.DanglingMessages},
		{`SELECT COUNT(*) FROM (
		    SELECT message_id FROM chat_message_join
		    GROUP BY message_id HAVING COUNT(DISTINCT chat_id) > 1)`, &report.MultiChatMessages},
		{`SELECT COALESCE(SUM(n - 1), 0) FROM (
		    SELECT COUNT(*) AS n FROM handle
		    WHERE person_centric_id IS NOT NULL
		    GROUP BY person_centric_id)`, &report.DuplicatedHandles},
	}
	for _, scan := range scans {
		if err := db.QueryRowContext(ctx, scan.query).Scan(scan.dst); err != nil {
			return nil, fmt.Errorf("diagnostic query: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx,
		`SELECT filename FROM attachment WHERE filename IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("diagnostic attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		if _, err := os.Stat(resolve(filename)); err != nil {
			report.MissingFiles++
		}
	}
	return report, rows.Err()
}
