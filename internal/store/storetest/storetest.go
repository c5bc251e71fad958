// Package storetest builds throwaway chat.db fixtures for tests.
package storetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/matheus3301/imex/internal/store"
)

const schema = `
CREATE TABLE handle (
	ROWID INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	service TEXT DEFAULT 'iMessage',
	person_centric_id TEXT
);
CREATE TABLE chat (
	ROWID INTEGER PRIMARY KEY,
	chat_identifier TEXT NOT NULL,
	service_name TEXT DEFAULT 'iMessage',
	display_name TEXT,
	style INTEGER DEFAULT 45
);
CREATE TABLE message (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT NOT NULL,
	text TEXT,
	service TEXT DEFAULT 'iMessage',
	subject TEXT,
	handle_id INTEGER DEFAULT 0,
	date INTEGER NOT NULL,
	date_read INTEGER DEFAULT 0,
	date_delivered INTEGER DEFAULT 0,
	date_edited INTEGER DEFAULT 0,
	date_retracted INTEGER DEFAULT 0,
	is_from_me INTEGER DEFAULT 0,
	is_read INTEGER DEFAULT 0,
	is_delivered INTEGER DEFAULT 0,
	is_finished INTEGER DEFAULT 1,
	is_audio_message INTEGER DEFAULT 0,
	is_played INTEGER DEFAULT 0,
	is_spam INTEGER DEFAULT 0,
	item_type INTEGER DEFAULT 0,
	group_title TEXT,
	group_action_type INTEGER DEFAULT 0,
	associated_message_guid TEXT,
	associated_message_type INTEGER DEFAULT 0,
	balloon_bundle_id TEXT,
	expressive_send_style_id TEXT,
	thread_originator_guid TEXT,
	thread_originator_part TEXT,
	attributedBody BLOB,
	payload_data BLOB,
	message_summary_info BLOB
);
CREATE TABLE attachment (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT,
	filename TEXT,
	uti TEXT,
	mime_type TEXT,
	transfer_name TEXT,
	total_bytes INTEGER DEFAULT 0,
	transfer_state INTEGER DEFAULT 5,
	is_sticker INTEGER DEFAULT 0,
	is_outgoing INTEGER DEFAULT 0,
	hide_attachment INTEGER DEFAULT 0,
	sticker_user_info BLOB
);
CREATE TABLE chat_message_join (chat_id INTEGER, message_id INTEGER);
CREATE TABLE chat_handle_join (chat_id INTEGER, handle_id INTEGER);
CREATE TABLE message_attachment_join (message_id INTEGER, attachment_id INTEGER);
`

// Fixture owns a writable connection to a fresh chat.db file.
type Fixture struct {
	t    *testing.T
	Path string
	rw   *sql.DB
}

// New creates an empty fixture database with the iMessage schema.
func New(t *testing.T) *Fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	rw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Exec(schema); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rw.Close() })
	return &Fixture{t: t, Path: path, rw: rw}
}

// Open opens the fixture through the production store.
func (f *Fixture) Open() *store.DB {
	f.t.Helper()
	db, err := store.Open(f.Path)
	if err != nil {
		f.t.Fatal(err)
	}
	f.t.Cleanup(func() { _ = db.Close() })
	return db
}

// Exec runs a statement against the writable connection.
func (f *Fixture) Exec(query string, args ...any) {
	f.t.Helper()
	if _, err := f.rw.Exec(query, args...); err != nil {
		f.t.Fatalf("fixture exec: %v", err)
	}
}

// AddHandle inserts a handle row. Empty pcid stores NULL.
func (f *Fixture) AddHandle(id int64, address, service, pcid string) {
	f.t.Helper()
	f.Exec(`INSERT INTO handle (ROWID, id, service, person_centric_id) VALUES (?, ?, ?, NULLIF(?, ''))`,
		id, address, service, pcid)
}

// AddChat inserts a chat row.
func (f *Fixture) AddChat(id int64, identifier, display string) {
	f.t.Helper()
	f.Exec(`INSERT INTO chat (ROWID, chat_identifier, display_name) VALUES (?, ?, ?)`,
		id, identifier, display)
}

// AddParticipant joins a handle into a chat.
func (f *Fixture) AddParticipant(chatID, handleID int64) {
	f.t.Helper()
	f.Exec(`INSERT INTO chat_handle_join (chat_id, handle_id) VALUES (?, ?)`, chatID, handleID)
}

// Msg describes a message row to insert; zero values become schema defaults.
type Msg struct {
	ID         int64
	GUID       string
	Text       string
	NullText   bool
	Service    string
	HandleID   int64
	ChatID     int64
	Date       int64
	DateRead   int64
	DateEdited int64
	Retracted  int64
	FromMe     bool
	ItemType   int
	GroupTitle string
	GroupAct   int
	AssocGUID  string
	AssocType  int
	Balloon    string
	Expressive string
	ThreadGUID string
	ThreadPart string
	Body       []byte
	Payload    []byte
	Summary    []byte
}

// AddMessage inserts a message row and joins it to its chat when ChatID is
// set.
func (f *Fixture) AddMessage(m Msg) {
	f.t.Helper()
	if m.Service == "" {
		m.Service = "iMessage"
	}
	text := any(m.Text)
	if m.NullText {
		text = nil
	}
	f.Exec(`INSERT INTO message (
			ROWID, guid, text, service, handle_id, date, date_read, date_edited,
			date_retracted, is_from_me, item_type, group_title, group_action_type,
			associated_message_guid, associated_message_type, balloon_bundle_id,
			expressive_send_style_id, thread_originator_guid, thread_originator_part,
			attributedBody, payload_data, message_summary_info
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), ?,
			NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)`,
		m.ID, m.GUID, text, m.Service, m.HandleID, m.Date, m.DateRead, m.DateEdited,
		m.Retracted, m.FromMe, m.ItemType, m.GroupTitle, m.GroupAct,
		m.AssocGUID, m.AssocType, m.Balloon,
		m.Expressive, m.ThreadGUID, m.ThreadPart,
		m.Body, m.Payload, m.Summary)
	if m.ChatID != 0 {
		f.Exec(`INSERT INTO chat_message_join (chat_id, message_id) VALUES (?, ?)`, m.ChatID, m.ID)
	}
}

// Att describes an attachment row.
type Att struct {
	ID        int64
	GUID      string
	Filename  string
	UTI       string
	MimeType  string
	Transfer  string
	Bytes     int64
	IsSticker bool
}

// AddAttachment inserts an attachment row and joins it to a message.
func (f *Fixture) AddAttachment(messageID int64, a Att) {
	f.t.Helper()
	f.Exec(`INSERT INTO attachment (ROWID, guid, filename, uti, mime_type, transfer_name, total_bytes, is_sticker)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)`,
		a.ID, a.GUID, a.Filename, a.UTI, a.MimeType, a.Transfer, a.Bytes, a.IsSticker)
	f.Exec(`INSERT INTO message_attachment_join (message_id, attachment_id) VALUES (?, ?)`,
		messageID, a.ID)
}
