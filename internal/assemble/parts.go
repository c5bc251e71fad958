package assemble

import (
	"strings"

	"github.com/matheus3301/imex/internal/store"
)

// attachmentChar marks an embedded attachment slot in message text.
const attachmentChar = '￼'

// splitParts splits message text at object-replacement characters, pairing
// each placeholder with the attachment row at the same ordinal. A
// placeholder with no paired row is stray and stays in the text verbatim.
func splitParts(text string, attachments []store.AttachmentRow) []Part {
	var (
		parts   []Part
		buf     strings.Builder
		ordinal int
	)
	flush := func() {
		if trimmed := strings.TrimSpace(buf.String()); trimmed != "" {
			parts = append(parts, Part{Kind: PartText, Text: trimmed})
		}
		buf.Reset()
	}
	for _, r := range text {
		if r == attachmentChar {
			if ordinal < len(attachments) {
				flush()
				parts = append(parts, Part{Kind: PartAttachment, Attachment: &attachments[ordinal]})
				ordinal++
				continue
			}
			// Stray placeholder: no matching attachment row.
		}
		buf.WriteRune(r)
	}
	flush()

	// Attachment rows beyond the last placeholder still belong to the
	// message; some senders omit the placeholder entirely.
	for ; ordinal < len(attachments); ordinal++ {
		parts = append(parts, Part{Kind: PartAttachment, Attachment: &attachments[ordinal]})
	}
	return parts
}
