package assemble

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/matheus3301/imex/internal/dates"
	"github.com/matheus3301/imex/internal/keyedarchive"
	"github.com/matheus3301/imex/internal/typedstream"
)

// decodeEditHistory parses a message_summary_info blob. The archive's "ec"
// dictionary maps part index to an ordered array of events; each event's
// "d" key is the edit time in seconds since the reference epoch and its "t"
// key a nested typedstream carrying that revision's text. An empty history
// on an edited message means the message was unsent.
func decodeEditHistory(blob []byte) ([]EditEvent, error) {
	root, err := keyedarchive.Parse(blob)
	if err != nil {
		return nil, err
	}
	ec := root.Key("ec")
	if ec == nil {
		return nil, nil
	}
	parts, err := ec.Dict()
	if err != nil {
		return nil, err
	}

	// Events are grouped per part; export them in part order.
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})

	var events []EditEvent
	for _, key := range keys {
		arr, err := parts[key].Array()
		if err != nil {
			return nil, err
		}
		for i, entry := range arr {
			seconds, err := entry.Key("d").Float()
			if err != nil {
				return nil, fmt.Errorf("edit entry %d: %w", i, err)
			}
			raw, err := entry.Key("t").Bytes()
			if err != nil {
				return nil, fmt.Errorf("edit entry %d: %w", i, err)
			}
			body, err := typedstream.Decode(raw)
			if err != nil {
				return nil, fmt.Errorf("edit entry %d: %w", i, err)
			}
			ev := EditEvent{
				Date: int64(seconds * dates.TimestampFactor),
				Text: body.Text,
			}
			if guid := entry.StringKey("bcg"); guid != "" {
				ev.GUID = guid
			}
			events = append(events, ev)
		}
	}
	return events, nil
}
