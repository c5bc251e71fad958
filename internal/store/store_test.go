package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/imex/internal/store"
	"github.com/matheus3301/imex/internal/store/storetest"
)

func TestOpenMissingFile(t *testing.T) {
	_, err := store.Open("/nonexistent/chat.db")
	if !errors.Is(err, store.ErrStoreOpen) {
		t.Errorf("got %v, want ErrStoreOpen", err)
	}
}

func TestStreamMessagesOrderAndBounds(t *testing.T) {
	f := storetest.New(t)
	f.AddChat(1, "chat1", "")
	f.AddMessage(storetest.Msg{ID: 1, GUID: "g1", Text: "first", ChatID: 1, Date: 100})
	f.AddMessage(storetest.Msg{ID: 3, GUID: "g3", Text: "tie-late", ChatID: 1, Date: 200})
	f.AddMessage(storetest.Msg{ID: 2, GUID: "g2", Text: "tie-early", ChatID: 1, Date: 200})
	f.AddMessage(storetest.Msg{ID: 4, GUID: "g4", Text: "last", ChatID: 1, Date: 300})
	db := f.Open()

	t.Run("full scan is (date, rowid) ordered", func(t *testing.T) {
		it, err := db.StreamMessages(context.Background(), store.QueryContext{})
		if err != nil {
			t.Fatal(err)
		}
		defer it.Close()

		var guids []string
		for it.Next() {
			guids = append(guids, it.Row().GUID)
		}
		if err := it.Err(); err != nil {
			t.Fatal(err)
		}
		want := []string{"g1", "g2", "g3", "g4"}
		if len(guids) != len(want) {
			t.Fatalf("got %v, want %v", guids, want)
		}
		for i := range want {
			if guids[i] != want[i] {
				t.Fatalf("got %v, want %v", guids, want)
			}
		}
	})

	t.Run("date window is half-open", func(t *testing.T) {
		start, end := int64(100), int64(300)
		it, err := db.StreamMessages(context.Background(), store.QueryContext{Start: &start, End: &end})
		if err != nil {
			t.Fatal(err)
		}
		defer it.Close()

		var count int
		for it.Next() {
			if d := it.Row().Date; d < start || d >= end {
				t.Errorf("date %d outside [%d, %d)", d, start, end)
			}
			count++
		}
		if count != 3 {
			t.Errorf("got %d rows, want 3", count)
		}
	})

	t.Run("cancellation stops the cursor", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		it, err := db.StreamMessages(ctx, store.QueryContext{})
		if err != nil {
			t.Fatal(err)
		}
		defer it.Close()

		if !it.Next() {
			t.Fatal("expected at least one row")
		}
		cancel()
		if it.Next() {
			t.Error("Next() after cancel should report false")
		}
		if !errors.Is(it.Err(), context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", it.Err())
		}
	})
}

func TestCountMessages(t *testing.T) {
	f := storetest.New(t)
	f.AddChat(1, "chat1", "")
	for i := int64(1); i <= 5; i++ {
		f.AddMessage(storetest.Msg{ID: i, GUID: string(rune('a' + i)), ChatID: 1, Date: i * 10})
	}
	db := f.Open()

	end := int64(40)
	n, err := db.CountMessages(context.Background(), store.QueryContext{End: &end})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestByGUID(t *testing.T) {
	f := storetest.New(t)
	f.AddChat(1, "chat1", "")
	f.AddMessage(storetest.Msg{ID: 1, GUID: "find-me", Text: "hello", ChatID: 1, Date: 10})
	db := f.Open()

	m, err := db.ByGUID(context.Background(), "find-me")
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Text != "hello" {
		t.Fatalf("got %+v", m)
	}

	// Second hit comes from the cache and returns the same row.
	again, err := db.ByGUID(context.Background(), "find-me")
	if err != nil {
		t.Fatal(err)
	}
	if again != m {
		t.Error("cached lookup returned a different row pointer")
	}

	missing, err := db.ByGUID(context.Background(), "no-such-guid")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("got %+v, want nil", missing)
	}
}

func TestAssociatedMessages(t *testing.T) {
	f := storetest.New(t)
	f.AddChat(1, "chat1", "")
	f.AddMessage(storetest.Msg{ID: 1, GUID: "target", Text: "hi", ChatID: 1, Date: 10})
	f.AddMessage(storetest.Msg{
		ID: 2, GUID: "tb", ChatID: 1, Date: 20, NullText: true,
		AssocGUID: "p:0/target", AssocType: 2001,
	})
	db := f.Open()

	rows, err := db.AssociatedMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].GUID != "tb" || rows[0].AssociatedType != 2001 {
		t.Fatalf("got %+v", rows)
	}
}

func TestRepliesTo(t *testing.T) {
	f := storetest.New(t)
	f.AddChat(1, "chat1", "")
	f.AddMessage(storetest.Msg{ID: 1, GUID: "parent", Text: "origin", ChatID: 1, Date: 10})
	f.AddMessage(storetest.Msg{
		ID: 2, GUID: "child", Text: "reply", ChatID: 1, Date: 20,
		ThreadGUID: "parent", ThreadPart: "0:0,11",
	})
	db := f.Open()

	parent, err := db.ByGUID(context.Background(), "parent")
	if err != nil {
		t.Fatal(err)
	}
	if parent.NumReplies != 1 {
		t.Errorf("NumReplies = %d, want 1", parent.NumReplies)
	}

	replies, err := db.RepliesTo(context.Background(), "parent")
	if err != nil {
		t.Fatal(err)
	}
	if len(replies) != 1 || replies[0].GUID != "child" {
		t.Fatalf("got %+v", replies)
	}
	if replies[0].ThreadOriginatorPart != "0:0,11" {
		t.Errorf("part = %q", replies[0].ThreadOriginatorPart)
	}
}

func TestAttachmentsOrdinalOrder(t *testing.T) {
	f := storetest.New(t)
	f.AddChat(1, "chat1", "")
	f.AddMessage(storetest.Msg{ID: 1, GUID: "m", Text: "￼￼", ChatID: 1, Date: 10})
	f.AddAttachment(1, storetest.Att{ID: 1, GUID: "a1", Filename: "~/Library/Messages/Attachments/a.heic", MimeType: "image/heic"})
	f.AddAttachment(1, storetest.Att{ID: 2, GUID: "a2", Filename: "~/Library/Messages/Attachments/b.jpeg", MimeType: "image/jpeg"})
	db := f.Open()

	atts, err := db.Attachments(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(atts) != 2 || atts[0].GUID != "a1" || atts[1].GUID != "a2" {
		t.Fatalf("got %+v", atts)
	}
	if atts[0].MimeType != "image/heic" {
		t.Errorf("mime = %q", atts[0].MimeType)
	}
}

func TestEntityScans(t *testing.T) {
	f := storetest.New(t)
	f.AddHandle(1, "a@x", "iMessage", "A")
	f.AddHandle(2, "+15550001", "SMS", "A")
	f.AddHandle(3, "b@y", "iMessage", "")
	f.AddChat(10, "a@x", "")
	f.AddChat(11, "+15550001", "")
	f.AddParticipant(10, 1)
	f.AddParticipant(11, 2)
	db := f.Open()

	handles, err := db.Handles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(handles) != 3 {
		t.Fatalf("got %d handles", len(handles))
	}
	if handles[0].PersonCentricID != "A" || handles[2].PersonCentricID != "" {
		t.Errorf("pcids = %q, %q", handles[0].PersonCentricID, handles[2].PersonCentricID)
	}

	chats, err := db.Chats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 || chats[10].Identifier != "a@x" {
		t.Fatalf("chats = %+v", chats)
	}

	parts, err := db.ChatParticipants(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(parts[10]) != 1 || parts[10][0] != 1 {
		t.Errorf("participants = %+v", parts)
	}
}
