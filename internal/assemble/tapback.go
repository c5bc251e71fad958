package assemble

import (
	"strconv"
	"strings"

	"github.com/matheus3301/imex/internal/store"
)

// Associated-message type tags. 2000s add a reaction, 3000s remove the
// matching one, 1000 places a sticker.
const (
	assocSticker   = 1000
	assocAddBase   = 2000
	assocRemove    = 3000
	assocRangeSize = 6
)

// tapbackOf parses the associated-message columns of a row into a Tapback.
// Returns nil when the row is not a reaction.
func tapbackOf(row *store.MessageRow) *Tapback {
	t := row.AssociatedType
	var remove bool
	switch {
	case t >= assocAddBase && t < assocAddBase+assocRangeSize:
	case t >= assocRemove && t < assocRemove+assocRangeSize:
		remove = true
	default:
		return nil
	}
	part, guid, ok := cleanAssociatedGUID(row.AssociatedGUID)
	if !ok {
		return nil
	}
	return &Tapback{
		Kind:       TapbackKind(t % 1000),
		Remove:     remove,
		TargetGUID: guid,
		TargetPart: part,
	}
}

// isSticker reports whether the row places a sticker on another message.
func isSticker(row *store.MessageRow) bool {
	return row.AssociatedType == assocSticker && row.AssociatedGUID != ""
}

// cleanAssociatedGUID splits an associated_message_guid column into its
// target part index and bare guid. The column has three forms:
//
//	p:N/GUID  -- reaction on part N
//	bp:GUID   -- reaction on a balloon bubble
//	GUID      -- reaction on part 0
func cleanAssociatedGUID(raw string) (part int, guid string, ok bool) {
	switch {
	case raw == "":
		return 0, "", false
	case strings.HasPrefix(raw, "p:"):
		idxStr, rest, found := strings.Cut(raw[2:], "/")
		if !found {
			return 0, "", false
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			idx = 0
		}
		return idx, clipGUID(rest), true
	case strings.HasPrefix(raw, "bp:"):
		return 0, clipGUID(raw[3:]), true
	default:
		return 0, clipGUID(raw), true
	}
}

// clipGUID trims trailing annotations some rows append after the 36-char
// guid.
func clipGUID(s string) string {
	if len(s) > 36 {
		return s[:36]
	}
	return s
}

// parseThreadPart extracts the part index from a thread_originator_part
// column, which reads like "2:0,11".
func parseThreadPart(raw string) int {
	head, _, _ := strings.Cut(raw, ":")
	idx, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return idx
}
