// Package entity deduplicates handles and chats into a stable identity
// graph.
//
// Handles sharing a person-centric id collapse into one contact cluster;
// chats whose participants map to the same cluster set collapse into one
// unique conversation. The graph is built once at startup and is read-only
// afterwards, so it may be shared freely.
package entity

import (
	"sort"
	"strconv"
	"strings"

	"github.com/matheus3301/imex/internal/store"
)

// Me is the display string for the local user. Handle id 0 refers to self
// in group chats.
const Me = "Me"

// Unknown is the display string for a handle the store has no record of.
const Unknown = "Unknown"

// Graph holds the three identity maps plus the display data derived from
// them.
type Graph struct {
	// me overrides the display string for the local user.
	me string
	// display maps handle id to the canonical display string of its
	// contact cluster.
	display map[int64]string
	// cluster maps handle id to its dense contact-cluster id.
	cluster map[int64]int
	// uniqueByKey maps a participant key (sorted cluster ids) to a dense
	// unique-chat id.
	uniqueByKey map[string]int
	// chatToUnique maps every chat row id to its unique-chat id.
	chatToUnique map[int64]int

	// chatsByUnique lists the chat row ids behind each unique chat, in
	// ascending order.
	chatsByUnique map[int][]int64
	// displayByUnique joins the participant cluster displays for naming
	// output files.
	displayByUnique map[int]string
	// customName, when set by the chat row, overrides the joined display.
	customName map[int]string
}

// Build runs the two-pass construction over the full handle scan and the
// chat participant table. A non-empty meName replaces the default display
// string for the local user.
func Build(handles []store.HandleRow, chats map[int64]store.ChatRow, participants map[int64][]int64, meName string) *Graph {
	g := &Graph{
		me:              meName,
		display:         make(map[int64]string),
		cluster:         make(map[int64]int),
		uniqueByKey:     make(map[string]int),
		chatToUnique:    make(map[int64]int),
		chatsByUnique:   make(map[int][]int64),
		displayByUnique: make(map[int]string),
		customName:      make(map[int]string),
	}

	// Pass 1: bucket handles by person-centric id. Handles without one
	// form singleton buckets keyed by their own address, so two rows with
	// the same address still collapse.
	type bucket struct {
		id        int
		addresses []string
	}
	buckets := make(map[string]*bucket)
	order := 0
	byHandle := make(map[int64]*bucket, len(handles))
	for _, h := range handles {
		key := h.PersonCentricID
		if key == "" {
			key = "addr:" + h.Address
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{id: order}
			order++
			buckets[key] = b
		}
		if !contains(b.addresses, h.Address) {
			b.addresses = append(b.addresses, h.Address)
		}
		byHandle[h.RowID] = b
	}
	for _, h := range handles {
		b := byHandle[h.RowID]
		g.cluster[h.RowID] = b.id
		g.display[h.RowID] = strings.Join(b.addresses, ", ")
	}

	// Pass 2: map each chat's participants through their clusters to a
	// participant key, assigning dense unique-chat ids in chat id order so
	// runs over the same store are reproducible.
	chatIDs := make([]int64, 0, len(chats))
	for id := range chats {
		chatIDs = append(chatIDs, id)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })

	for _, chatID := range chatIDs {
		clusters := make([]int, 0, len(participants[chatID]))
		seen := make(map[int]bool)
		var displays []string
		for _, handleID := range participants[chatID] {
			cid, ok := g.cluster[handleID]
			if !ok {
				continue
			}
			if !seen[cid] {
				seen[cid] = true
				clusters = append(clusters, cid)
				displays = append(displays, g.display[handleID])
			}
		}
		key := participantKey(clusters)
		unique, ok := g.uniqueByKey[key]
		if !ok {
			unique = len(g.uniqueByKey)
			g.uniqueByKey[key] = unique
			g.displayByUnique[unique] = strings.Join(displays, ", ")
		}
		g.chatToUnique[chatID] = unique
		g.chatsByUnique[unique] = append(g.chatsByUnique[unique], chatID)
		if name := chats[chatID].DisplayName; name != "" && g.customName[unique] == "" {
			g.customName[unique] = name
		}
	}
	return g
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// participantKey renders a cluster set as a canonical sorted key.
func participantKey(clusters []int) string {
	sorted := append([]int(nil), clusters...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, c := range sorted {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// Who returns the display string for a message author.
func (g *Graph) Who(handleID int64, isFromMe bool) string {
	if isFromMe {
		if g.me != "" {
			return g.me
		}
		return Me
	}
	if s, ok := g.display[handleID]; ok {
		return s
	}
	return Unknown
}

// Cluster returns the contact-cluster id for a handle.
func (g *Graph) Cluster(handleID int64) (int, bool) {
	c, ok := g.cluster[handleID]
	return c, ok
}

// UniqueChat resolves a chat row id to its unique-chat id.
func (g *Graph) UniqueChat(chatID int64) (int, bool) {
	u, ok := g.chatToUnique[chatID]
	return u, ok
}

// UniqueChats returns every unique-chat id in ascending order.
func (g *Graph) UniqueChats() []int {
	out := make([]int, 0, len(g.chatsByUnique))
	for u := range g.chatsByUnique {
		out = append(out, u)
	}
	sort.Ints(out)
	return out
}

// ChatsOf lists the chat row ids collapsed into a unique chat.
func (g *Graph) ChatsOf(unique int) []int64 {
	return g.chatsByUnique[unique]
}

// DisplayName returns the human name for a unique chat: the store's custom
// display name when one exists, else the joined participant displays.
func (g *Graph) DisplayName(unique int) string {
	if name, ok := g.customName[unique]; ok && name != "" {
		return name
	}
	if s := g.displayByUnique[unique]; s != "" {
		return s
	}
	return Unknown
}

// ParticipantDisplay returns the joined participant display string,
// ignoring any custom chat name. File naming uses this.
func (g *Graph) ParticipantDisplay(unique int) string {
	if s := g.displayByUnique[unique]; s != "" {
		return s
	}
	return Unknown
}
