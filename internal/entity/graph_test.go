package entity

import (
	"testing"

	"github.com/matheus3301/imex/internal/store"
)

func build(handles []store.HandleRow, chats map[int64]store.ChatRow, parts map[int64][]int64) *Graph {
	if chats == nil {
		chats = map[int64]store.ChatRow{}
	}
	return Build(handles, chats, parts, "")
}

func TestDuplicateContactCollapsesChats(t *testing.T) {
	handles := []store.HandleRow{
		{RowID: 1, Address: "a@x", PersonCentricID: "A"},
		{RowID: 2, Address: "+15550001", PersonCentricID: "A"},
	}
	chats := map[int64]store.ChatRow{
		10: {RowID: 10, Identifier: "a@x"},
		11: {RowID: 11, Identifier: "+15550001"},
	}
	parts := map[int64][]int64{10: {1}, 11: {2}}

	g := build(handles, chats, parts)

	u10, ok := g.UniqueChat(10)
	if !ok {
		t.Fatal("chat 10 has no unique id")
	}
	u11, ok := g.UniqueChat(11)
	if !ok {
		t.Fatal("chat 11 has no unique id")
	}
	if u10 != u11 || u10 != 0 {
		t.Errorf("K[10]=%d K[11]=%d, want both 0", u10, u11)
	}
	if got := g.ParticipantDisplay(0); got != "a@x, +15550001" {
		t.Errorf("display = %q, want %q", got, "a@x, +15550001")
	}
	if got := g.ChatsOf(0); len(got) != 2 {
		t.Errorf("chats of 0 = %v", got)
	}
}

func TestSingletonBucketsStayDistinct(t *testing.T) {
	handles := []store.HandleRow{
		{RowID: 1, Address: "a@x"},
		{RowID: 2, Address: "b@y"},
	}
	chats := map[int64]store.ChatRow{
		10: {RowID: 10}, 11: {RowID: 11},
	}
	parts := map[int64][]int64{10: {1}, 11: {2}}

	g := build(handles, chats, parts)
	u10, _ := g.UniqueChat(10)
	u11, _ := g.UniqueChat(11)
	if u10 == u11 {
		t.Errorf("distinct participants share unique chat %d", u10)
	}
}

func TestSameAddressWithoutPCIDCollapses(t *testing.T) {
	handles := []store.HandleRow{
		{RowID: 1, Address: "a@x", Service: "iMessage"},
		{RowID: 2, Address: "a@x", Service: "SMS"},
	}
	g := build(handles, nil, nil)
	c1, _ := g.Cluster(1)
	c2, _ := g.Cluster(2)
	if c1 != c2 {
		t.Errorf("clusters %d and %d, want equal", c1, c2)
	}
	if got := g.Who(1, false); got != "a@x" {
		t.Errorf("display = %q, repeated address must not duplicate", got)
	}
}

func TestGroupChatKeyIsOrderInsensitive(t *testing.T) {
	handles := []store.HandleRow{
		{RowID: 1, Address: "a@x"},
		{RowID: 2, Address: "b@y"},
	}
	chats := map[int64]store.ChatRow{
		10: {RowID: 10}, 11: {RowID: 11},
	}
	parts := map[int64][]int64{10: {1, 2}, 11: {2, 1}}

	g := build(handles, chats, parts)
	u10, _ := g.UniqueChat(10)
	u11, _ := g.UniqueChat(11)
	if u10 != u11 {
		t.Errorf("same participant sets got distinct unique chats %d, %d", u10, u11)
	}
}

func TestWho(t *testing.T) {
	g := build([]store.HandleRow{{RowID: 1, Address: "a@x"}}, nil, nil)
	if got := g.Who(1, false); got != "a@x" {
		t.Errorf("Who(1) = %q", got)
	}
	if got := g.Who(1, true); got != Me {
		t.Errorf("Who(from me) = %q", got)
	}
	if got := g.Who(99, false); got != Unknown {
		t.Errorf("Who(unknown) = %q", got)
	}
}

func TestCustomDisplayName(t *testing.T) {
	handles := []store.HandleRow{
		{RowID: 1, Address: "a@x"},
		{RowID: 2, Address: "b@y"},
	}
	chats := map[int64]store.ChatRow{
		10: {RowID: 10, DisplayName: "Family"},
	}
	parts := map[int64][]int64{10: {1, 2}}

	g := build(handles, chats, parts)
	u, _ := g.UniqueChat(10)
	if got := g.DisplayName(u); got != "Family" {
		t.Errorf("DisplayName = %q, want Family", got)
	}
	if got := g.ParticipantDisplay(u); got != "a@x, b@y" {
		t.Errorf("ParticipantDisplay = %q", got)
	}
}

func TestEveryChatResolves(t *testing.T) {
	handles := []store.HandleRow{{RowID: 1, Address: "a@x"}}
	chats := map[int64]store.ChatRow{
		10: {RowID: 10},
		// A chat with no joined participants still gets a unique id.
		11: {RowID: 11},
	}
	parts := map[int64][]int64{10: {1}}

	g := build(handles, chats, parts)
	for chatID := range chats {
		if _, ok := g.UniqueChat(chatID); !ok {
			t.Errorf("chat %d has no unique id", chatID)
		}
	}
}
