// Package assemble joins raw message rows with their parts, attachments,
// reactions, replies and edit histories into fully populated in-memory
// messages.
package assemble

import (
	"github.com/matheus3301/imex/internal/balloon"
	"github.com/matheus3301/imex/internal/store"
)

// Class is the broad category of an assembled message.
type Class int

const (
	// ClassPrimary is a normal message: text, attachments, or an app balloon.
	ClassPrimary Class = iota
	// ClassTapback is a reaction attached to another message.
	ClassTapback
	// ClassSticker is a sticker placed on another message.
	ClassSticker
	// ClassSystem is a group event or other non-content row.
	ClassSystem
	// ClassUnsent is a message retracted by its sender.
	ClassUnsent
)

// PartKind distinguishes the content of a message part.
type PartKind int

const (
	PartText PartKind = iota
	PartAttachment
	PartApp
)

// Part is one sub-range of a message, split at object-replacement
// boundaries. Parts are ordered and indexed from 0.
type Part struct {
	Kind       PartKind
	Text       string
	Attachment *store.AttachmentRow
}

// TapbackKind is the closed set of reaction types.
type TapbackKind int

const (
	Loved TapbackKind = iota
	Liked
	Disliked
	Laughed
	Emphasized
	Questioned
)

// Verb returns the reaction's past-tense rendering, e.g. "Disliked".
func (k TapbackKind) Verb() string {
	switch k {
	case Loved:
		return "Loved"
	case Liked:
		return "Liked"
	case Disliked:
		return "Disliked"
	case Laughed:
		return "Laughed at"
	case Emphasized:
		return "Emphasized"
	case Questioned:
		return "Questioned"
	}
	return "Reacted to"
}

// Tapback is the parsed associated-message fields of a reaction row.
type Tapback struct {
	Kind       TapbackKind
	Remove     bool
	TargetGUID string
	TargetPart int
}

// Reaction is the resolved view of a tapback projected onto its target
// part: the latest add/remove of each (kind, sender) pair, surviving only
// when the latest action was an add.
type Reaction struct {
	Kind     TapbackKind
	By       string
	HandleID int64
	Date     int64
}

// Sticker is a sticker placed on a target part.
type Sticker struct {
	By   string
	Name string
	Path string
}

// EditEvent is one entry of an edit history, oldest first.
type EditEvent struct {
	Date int64
	Text string
	GUID string
}

// ReplyRef points at the thread parent of a reply.
type ReplyRef struct {
	GUID string
	Part int
	// OutOfRange marks a parent that exists but falls outside the export's
	// date window; the link is annotated, not followed.
	OutOfRange bool
	// Missing marks a parent guid with no row in the store.
	Missing bool
}

// EffectKind distinguishes bubble effects from full-screen effects.
type EffectKind int

const (
	EffectBubble EffectKind = iota
	EffectScreen
)

// Effect is an expressive-send presentation.
type Effect struct {
	Kind EffectKind
	Name string
}

// Announcement is a group-event row: a rename or photo change.
type Announcement struct {
	Kind string // "name" or "photo"
	Name string
}

// Unreadable marks a field whose blob could not be decoded; assembly
// replaced it and continued.
type Unreadable struct {
	Kind   string
	Reason string
}

// Message is a fully assembled message ready for rendering. It is never
// mutated after assembly.
type Message struct {
	Row *store.MessageRow

	Author  string
	Class   Class
	Parts   []Part
	Balloon balloon.Balloon

	Tapback *Tapback

	Reactions map[int][]Reaction
	Stickers  map[int][]Sticker

	Edits          []EditEvent
	EditSuppressed bool

	ReplyTo      *ReplyRef
	Effect       *Effect
	Announcement *Announcement

	// Replies holds the assembled thread replies for threaded rendering
	// under this message; the export driver fills it for thread
	// originators.
	Replies []*Message

	Unreadables []Unreadable
}

// HasContent reports whether the message carries anything renderable.
func (m *Message) HasContent() bool {
	return len(m.Parts) > 0 || m.Balloon != nil || m.Announcement != nil ||
		m.Class == ClassUnsent
}
