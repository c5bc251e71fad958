package export

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/matheus3301/imex/internal/assemble"
	"github.com/matheus3301/imex/internal/balloon"
	"github.com/matheus3301/imex/internal/dates"
)

// TextRenderer writes one conversation as a plain-text transcript.
type TextRenderer struct {
	path   string
	file   *os.File
	w      *bufio.Writer
	placer *Placer
}

// NewTextRenderer opens the conversation's output file.
func NewTextRenderer(path string, placer *Placer) (*TextRenderer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &OutputIo{Path: path, Reason: err.Error()}
	}
	return &TextRenderer{
		path:   path,
		file:   file,
		w:      bufio.NewWriter(file),
		placer: placer,
	}, nil
}

func (r *TextRenderer) BeginConversation(_ int, display string) error {
	return r.line(0, display+"\n")
}

func (r *TextRenderer) EndConversation() error {
	if err := r.w.Flush(); err != nil {
		_ = r.file.Close()
		return &OutputIo{Path: r.path, Reason: err.Error()}
	}
	if err := r.file.Close(); err != nil {
		return &OutputIo{Path: r.path, Reason: err.Error()}
	}
	return nil
}

// WriteMessage emits the message: timestamp, author, parts with their
// reactions and stickers, edit history, expressive effect, and thread
// replies.
func (r *TextRenderer) WriteMessage(m *assemble.Message) error {
	if err := r.writeMessage(m, 0); err != nil {
		return err
	}
	return r.line(0, "")
}

func (r *TextRenderer) writeMessage(m *assemble.Message, indent int) error {
	if err := r.line(indent, r.timestamp(m)); err != nil {
		return err
	}
	if err := r.line(indent, m.Author); err != nil {
		return err
	}

	switch {
	case m.Announcement != nil:
		return r.line(indent, announcementText(m))
	case m.Class == assemble.ClassUnsent:
		return r.line(indent, "This message was unsent.")
	}

	for idx, part := range m.Parts {
		if idx > 0 {
			if err := r.line(indent, ""); err != nil {
				return err
			}
		}
		if err := r.line(indent, r.partBody(m, part)); err != nil {
			return err
		}
		for _, reaction := range m.Reactions[idx] {
			if err := r.line(indent+4, fmt.Sprintf("%s by %s", reaction.Kind.Verb(), reaction.By)); err != nil {
				return err
			}
		}
		for _, sticker := range m.Stickers[idx] {
			if err := r.line(indent+4, r.sticker(sticker)); err != nil {
				return err
			}
		}
	}

	if len(m.Edits) > 0 {
		if err := r.line(indent, "Edited:"); err != nil {
			return err
		}
		for _, ev := range m.Edits {
			stamp := dates.Format(dates.ToTime(ev.Date))
			if err := r.line(indent+4, fmt.Sprintf("%s: %s", stamp, ev.Text)); err != nil {
				return err
			}
		}
	}

	if m.Effect != nil {
		if err := r.line(indent, "Sent with "+m.Effect.Name); err != nil {
			return err
		}
	}

	if m.ReplyTo != nil && indent == 0 {
		if err := r.line(indent, replyNote(m.ReplyTo)); err != nil {
			return err
		}
	}

	for _, reply := range m.Replies {
		if err := r.writeMessage(reply, indent+4); err != nil {
			return err
		}
	}
	return nil
}

func (r *TextRenderer) partBody(m *assemble.Message, part assemble.Part) string {
	switch part.Kind {
	case assemble.PartAttachment:
		placement := r.placer.Place(part.Attachment)
		if placement.Missing {
			return fmt.Sprintf("<attachment missing: %s>", placement.Name)
		}
		if placement.ConvertFailed != "" {
			return placement.Path + " (conversion failed, original format)"
		}
		return placement.Path
	case assemble.PartApp:
		return balloonText(m)
	default:
		return part.Text
	}
}

func balloonText(m *assemble.Message) string {
	switch b := m.Balloon.(type) {
	case balloon.URLPreview:
		var sb strings.Builder
		sb.WriteString(b.URL)
		if b.Title != "" {
			fmt.Fprintf(&sb, "\n%s", b.Title)
		}
		if b.Summary != "" {
			fmt.Fprintf(&sb, "\n%s", b.Summary)
		}
		return sb.String()
	case balloon.AppMusic:
		return fmt.Sprintf("%s by %s (%s)\n%s", b.Track, b.Artist, b.Album, b.URL)
	case balloon.ApplePay:
		return applePayText(b)
	case balloon.Collaboration:
		return fmt.Sprintf("Shared %q via %s\n%s", b.Title, b.App, b.URL)
	case balloon.SharePlay:
		return "SharePlay: " + b.Activity
	case balloon.Handwriting:
		return "Handwritten message"
	case balloon.GenericApp:
		var parts []string
		for _, s := range []string{b.LDText, b.Caption, b.Title, b.Subtitle} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return fmt.Sprintf("App message from %s", b.BundleID)
		}
		return strings.Join(parts, "\n")
	case balloon.UnknownBalloon:
		return fmt.Sprintf("Unsupported app message (%s)", b.BundleID)
	default:
		return "App message"
	}
}

func applePayText(b balloon.ApplePay) string {
	amount := b.Amount
	if b.Currency == "USD" {
		amount = "$" + amount
	} else if b.Currency != "" {
		amount = amount + " " + b.Currency
	}
	switch b.Kind {
	case balloon.PayRequest:
		return fmt.Sprintf("Requested %s via Apple Cash", amount)
	case balloon.PayReceive:
		return fmt.Sprintf("Received %s via Apple Cash", amount)
	default:
		return fmt.Sprintf("Sent %s via Apple Cash", amount)
	}
}

func (r *TextRenderer) sticker(s assemble.Sticker) string {
	if s.Name != "" {
		return fmt.Sprintf("Sticker from %s: %s", s.By, s.Name)
	}
	return fmt.Sprintf("Sticker from %s", s.By)
}

func (r *TextRenderer) timestamp(m *assemble.Message) string {
	stamp := dates.Format(dates.ToTime(m.Row.Date))
	if note := readReceipt(m); note != "" {
		stamp += " " + note
	}
	return stamp
}

// readReceipt renders the time-until-read note for messages that carry
// receipt timestamps.
func readReceipt(m *assemble.Message) string {
	row := m.Row
	sent := dates.ToTime(row.Date)
	if !row.IsFromMe && row.DateRead != 0 {
		if diff := dates.ReadableDiff(sent, dates.ToTime(row.DateRead)); diff != "" {
			return fmt.Sprintf("(Read by Me after %s)", diff)
		}
	}
	if row.IsFromMe && row.DateDelivered != 0 {
		if diff := dates.ReadableDiff(sent, dates.ToTime(row.DateDelivered)); diff != "" {
			return fmt.Sprintf("(Delivered after %s)", diff)
		}
	}
	return ""
}

func announcementText(m *assemble.Message) string {
	switch m.Announcement.Kind {
	case "name":
		return fmt.Sprintf("%s renamed the conversation to %q", m.Author, m.Announcement.Name)
	case "photo":
		return fmt.Sprintf("%s changed the group photo", m.Author)
	default:
		return fmt.Sprintf("%s updated the conversation", m.Author)
	}
}

func replyNote(ref *assemble.ReplyRef) string {
	switch {
	case ref.OutOfRange:
		return fmt.Sprintf("Reply to out-of-range message %s", ref.GUID)
	case ref.Missing:
		return fmt.Sprintf("Reply to missing message %s", ref.GUID)
	default:
		return "This message responded to an earlier message."
	}
}

// line writes one indented line. Multi-line content keeps the indent on
// every line.
func (r *TextRenderer) line(indent int, content string) error {
	prefix := strings.Repeat(" ", indent)
	for _, part := range strings.Split(content, "\n") {
		if _, err := fmt.Fprintf(r.w, "%s%s\n", prefix, part); err != nil {
			return &OutputIo{Path: r.path, Reason: err.Error()}
		}
	}
	return nil
}
