package assemble

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/matheus3301/imex/internal/balloon"
	"github.com/matheus3301/imex/internal/entity"
	"github.com/matheus3301/imex/internal/keyedarchive"
	"github.com/matheus3301/imex/internal/store"
	"github.com/matheus3301/imex/internal/typedstream"
)

// Assembler turns raw rows into assembled messages. It is built once per
// run; the tapback index and identity graph it holds are read-only.
type Assembler struct {
	db     *store.DB
	graph  *entity.Graph
	window store.QueryContext
	logger *zap.Logger

	// tapbacks indexes every associated row by target guid and part.
	tapbacks map[string]map[int][]*store.MessageRow
}

// New builds an assembler, loading the tapback index with a single scan of
// the associated-message rows.
func New(ctx context.Context, db *store.DB, graph *entity.Graph, window store.QueryContext, logger *zap.Logger) (*Assembler, error) {
	a := &Assembler{
		db:       db,
		graph:    graph,
		window:   window,
		logger:   logger,
		tapbacks: make(map[string]map[int][]*store.MessageRow),
	}
	rows, err := db.AssociatedMessages(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		tb := tapbackOf(row)
		if tb == nil && !isSticker(row) {
			continue
		}
		part, guid, ok := cleanAssociatedGUID(row.AssociatedGUID)
		if !ok {
			continue
		}
		byPart := a.tapbacks[guid]
		if byPart == nil {
			byPart = make(map[int][]*store.MessageRow)
			a.tapbacks[guid] = byPart
		}
		byPart[part] = append(byPart[part], row)
	}
	return a, nil
}

// IsAssociated reports whether a row is a tapback or sticker placement;
// such rows render under their targets, never on their own.
func IsAssociated(row *store.MessageRow) bool {
	return tapbackOf(row) != nil || isSticker(row)
}

// Assemble builds the full in-memory message for one row. Assembly never
// aborts on a malformed blob: the affected field becomes an Unreadable
// marker. A row missing required columns is fatal.
func (a *Assembler) Assemble(ctx context.Context, row *store.MessageRow) (*Message, error) {
	if row.GUID == "" {
		return nil, &store.CorruptRow{RowID: row.RowID, Field: "guid"}
	}
	if row.Date == 0 {
		return nil, &store.CorruptRow{RowID: row.RowID, Field: "date"}
	}

	m := &Message{
		Row:          row,
		Author:       a.graph.Who(row.HandleID, row.IsFromMe),
		Effect:       effectOf(row.ExpressiveID),
		Announcement: announcementOf(row),
	}

	m.Class = a.classify(row)
	if tb := tapbackOf(row); tb != nil {
		m.Tapback = tb
	}

	text := a.resolveText(row, m)

	// App balloons render as a single part; the payload graph decides the
	// balloon record. SharePlay rows have no payload but render the same
	// way.
	if row.BalloonBundle != "" {
		m.Balloon = a.decodeBalloon(row, m)
		m.Parts = []Part{{Kind: PartApp, Text: text}}
	} else if row.ItemType == itemTypeSharePlay {
		m.Balloon = balloon.SharePlay{Activity: "FaceTime"}
		m.Parts = []Part{{Kind: PartApp, Text: text}}
	} else {
		attachments, err := a.db.Attachments(ctx, row.RowID)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", row.RowID, err)
		}
		m.Parts = splitParts(text, attachments)
	}

	if row.DateEdited != 0 && len(row.SummaryInfo) > 0 {
		events, err := decodeEditHistory(row.SummaryInfo)
		if err != nil {
			// Pre-Ventura stores flag edits without a decodable summary;
			// render as a normal message with the flag suppressed.
			m.EditSuppressed = true
			a.logger.Debug("edit history unreadable",
				zap.Int64("rowid", row.RowID), zap.Error(err))
		} else {
			m.Edits = events
		}
	} else if row.DateEdited != 0 {
		m.EditSuppressed = true
	}
	if row.WasUnsent && len(m.Edits) == 0 {
		m.Class = ClassUnsent
	}

	a.attachReactions(ctx, m)
	a.resolveReply(ctx, m)
	return m, nil
}

// itemTypeSharePlay marks SharePlay/FaceTime rows in the item_type column.
const itemTypeSharePlay = 6

func (a *Assembler) classify(row *store.MessageRow) Class {
	switch {
	case tapbackOf(row) != nil:
		return ClassTapback
	case isSticker(row):
		return ClassSticker
	case row.WasUnsent:
		return ClassUnsent
	case row.ItemType == itemTypeSharePlay:
		return ClassPrimary
	case row.ItemType != 0 || row.GroupTitle != "" || row.GroupActionType != 0:
		return ClassSystem
	default:
		return ClassPrimary
	}
}

// resolveText decodes the rich-text body, falling back to the plain text
// column. The decoded value is computed once here and kept on the message.
func (a *Assembler) resolveText(row *store.MessageRow, m *Message) string {
	if len(row.AttributedBody) > 0 {
		body, err := typedstream.Decode(row.AttributedBody)
		if err == nil {
			return body.Text
		}
		m.Unreadables = append(m.Unreadables, Unreadable{Kind: "body", Reason: err.Error()})
		a.logger.Debug("attributed body unreadable",
			zap.Int64("rowid", row.RowID), zap.Error(err))
	}
	if row.HasText {
		return row.Text
	}
	return ""
}

func (a *Assembler) decodeBalloon(row *store.MessageRow, m *Message) balloon.Balloon {
	if len(row.PayloadData) == 0 {
		return balloon.UnknownBalloon{BundleID: balloon.AppBundleID(row.BalloonBundle)}
	}
	root, err := keyedarchive.Parse(row.PayloadData)
	if err != nil {
		m.Unreadables = append(m.Unreadables, Unreadable{Kind: "payload", Reason: err.Error()})
		return balloon.UnknownBalloon{BundleID: balloon.AppBundleID(row.BalloonBundle)}
	}
	return balloon.Decode(row.BalloonBundle, root)
}

// attachReactions projects the tapback index onto the message: per part,
// reactions of matching type and sender supersede each other by sent
// timestamp, and only surviving adds remain. Stickers keep every placement.
func (a *Assembler) attachReactions(ctx context.Context, m *Message) {
	byPart := a.tapbacks[m.Row.GUID]
	if len(byPart) == 0 {
		return
	}
	lastPart := len(m.Parts) - 1
	if lastPart < 0 {
		lastPart = 0
	}

	for part, rows := range byPart {
		target := part
		if target > lastPart {
			a.logger.Warn("tapback targets part beyond message",
				zap.String("guid", m.Row.GUID),
				zap.Int("part", part), zap.Int("parts", len(m.Parts)))
			target = lastPart
		}

		type senderKey struct {
			kind   TapbackKind
			handle int64
			fromMe bool
		}
		latest := make(map[senderKey]*store.MessageRow)
		for _, row := range rows {
			tb := tapbackOf(row)
			if tb == nil {
				if isSticker(row) {
					a.attachSticker(ctx, m, target, row)
				}
				continue
			}
			key := senderKey{tb.Kind, row.HandleID, row.IsFromMe}
			cur, ok := latest[key]
			if !ok || row.Date > cur.Date || (row.Date == cur.Date && row.RowID < cur.RowID) {
				latest[key] = row
			}
		}

		var reactions []Reaction
		for key, row := range latest {
			if tapbackOf(row).Remove {
				continue
			}
			reactions = append(reactions, Reaction{
				Kind:     key.kind,
				By:       a.graph.Who(row.HandleID, row.IsFromMe),
				HandleID: row.HandleID,
				Date:     row.Date,
			})
		}
		if len(reactions) == 0 {
			continue
		}
		sort.Slice(reactions, func(i, j int) bool {
			if reactions[i].Date != reactions[j].Date {
				return reactions[i].Date < reactions[j].Date
			}
			return reactions[i].HandleID < reactions[j].HandleID
		})
		if m.Reactions == nil {
			m.Reactions = make(map[int][]Reaction)
		}
		m.Reactions[target] = append(m.Reactions[target], reactions...)
	}
}

func (a *Assembler) attachSticker(ctx context.Context, m *Message, part int, row *store.MessageRow) {
	s := Sticker{By: a.graph.Who(row.HandleID, row.IsFromMe)}
	atts, err := a.db.Attachments(ctx, row.RowID)
	if err == nil && len(atts) > 0 {
		s.Name = atts[0].TransferName
		s.Path = atts[0].Filename
	}
	if m.Stickers == nil {
		m.Stickers = make(map[int][]Sticker)
	}
	m.Stickers[part] = append(m.Stickers[part], s)
}

// resolveReply resolves the thread parent of a reply. Parents outside the
// date window are annotated, not followed.
func (a *Assembler) resolveReply(ctx context.Context, m *Message) {
	guid := m.Row.ThreadOriginatorGUID
	if guid == "" || guid == m.Row.GUID {
		return
	}
	ref := &ReplyRef{GUID: guid, Part: parseThreadPart(m.Row.ThreadOriginatorPart)}
	parent, err := a.db.ByGUID(ctx, guid)
	switch {
	case err != nil || parent == nil:
		ref.Missing = true
	case !a.window.InRange(parent.Date):
		ref.OutOfRange = true
	}
	m.ReplyTo = ref
}

// AssembleReplies assembles the thread replies anchored on a message, in
// (date, rowid) order, for threaded rendering under the parent.
func (a *Assembler) AssembleReplies(ctx context.Context, m *Message) ([]*Message, error) {
	if m.Row.NumReplies == 0 {
		return nil, nil
	}
	rows, err := a.db.RepliesTo(ctx, m.Row.GUID)
	if err != nil {
		return nil, err
	}
	var out []*Message
	for _, row := range rows {
		if IsAssociated(row) || !a.window.InRange(row.Date) {
			continue
		}
		reply, err := a.Assemble(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, reply)
	}
	return out, nil
}

func announcementOf(row *store.MessageRow) *Announcement {
	if row.GroupTitle != "" {
		return &Announcement{Kind: "name", Name: row.GroupTitle}
	}
	if row.GroupActionType == 1 {
		return &Announcement{Kind: "photo"}
	}
	return nil
}
