package export

import (
	"bufio"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/matheus3301/imex/internal/assemble"
	"github.com/matheus3301/imex/internal/balloon"
	"github.com/matheus3301/imex/internal/dates"
)

const htmlStyle = `body { font-family: -apple-system, sans-serif; background: #fff; margin: 0 auto; max-width: 60em; padding: 1em; }
.message { margin: 0.5em 0; }
.meta { color: #8e8e93; font-size: 0.8em; }
.balloon { display: inline-block; border-radius: 1em; padding: 0.5em 0.8em; max-width: 75%; }
.service-imessage .balloon { background: #1982fc; color: #fff; }
.service-sms .balloon { background: #65c466; color: #fff; }
.service-other .balloon { background: #e9e9eb; color: #000; }
.from-me { text-align: right; }
.reactions, .stickers { font-size: 0.85em; color: #8e8e93; }
.reply { margin-left: 2em; border-left: 2px solid #e9e9eb; padding-left: 0.5em; }
.reply-marker { font-size: 0.8em; color: #8e8e93; font-style: italic; }
.announcement { text-align: center; color: #8e8e93; font-size: 0.9em; }
.app-balloon { border: 1px solid #e9e9eb; border-radius: 0.8em; padding: 0.6em; display: inline-block; }
.app-balloon .caption { font-weight: 600; }
img, video { max-width: 20em; border-radius: 0.5em; }
details.edits { font-size: 0.85em; color: #8e8e93; }`

// HTMLRenderer writes one conversation as an HTML document.
type HTMLRenderer struct {
	path   string
	file   *os.File
	w      *bufio.Writer
	placer *Placer
	lazy   bool
}

// NewHTMLRenderer opens the conversation's output document. lazy controls
// the loading attribute on embedded media.
func NewHTMLRenderer(path string, placer *Placer, lazy bool) (*HTMLRenderer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &OutputIo{Path: path, Reason: err.Error()}
	}
	return &HTMLRenderer{
		path:   path,
		file:   file,
		w:      bufio.NewWriter(file),
		placer: placer,
		lazy:   lazy,
	}, nil
}

func (r *HTMLRenderer) BeginConversation(_ int, display string) error {
	return r.emit(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
%s
</style>
</head>
<body>
<h1>%s</h1>
`, html.EscapeString(display), htmlStyle, html.EscapeString(display))
}

func (r *HTMLRenderer) EndConversation() error {
	if err := r.emit("</body>\n</html>\n"); err != nil {
		return err
	}
	if err := r.w.Flush(); err != nil {
		_ = r.file.Close()
		return &OutputIo{Path: r.path, Reason: err.Error()}
	}
	if err := r.file.Close(); err != nil {
		return &OutputIo{Path: r.path, Reason: err.Error()}
	}
	return nil
}

func (r *HTMLRenderer) WriteMessage(m *assemble.Message) error {
	return r.writeMessage(m, false)
}

func (r *HTMLRenderer) writeMessage(m *assemble.Message, threaded bool) error {
	classes := []string{"message", serviceClass(m.Row.Service)}
	if m.Row.IsFromMe {
		classes = append(classes, "from-me")
	}
	if threaded {
		classes = append(classes, "reply")
	}
	if err := r.emit("<div class=%q>\n", strings.Join(classes, " ")); err != nil {
		return err
	}

	stamp := dates.Format(dates.ToTime(m.Row.Date))
	meta := fmt.Sprintf("%s &mdash; %s", html.EscapeString(stamp), html.EscapeString(m.Author))
	if note := readReceipt(m); note != "" {
		meta += " " + html.EscapeString(note)
	}
	if err := r.emit("<div class=\"meta\">%s</div>\n", meta); err != nil {
		return err
	}

	switch {
	case m.Announcement != nil:
		text := announcementText(m)
		if err := r.emit("<div class=\"announcement\">%s</div>\n", html.EscapeString(text)); err != nil {
			return err
		}
	case m.Class == assemble.ClassUnsent:
		if err := r.emit("<div class=\"announcement\">This message was unsent.</div>\n"); err != nil {
			return err
		}
	default:
		if err := r.writeBody(m); err != nil {
			return err
		}
	}

	// In-place copies of thread replies get a marker pointing at their
	// parent; the threaded copy renders under the parent itself.
	if m.ReplyTo != nil && !threaded {
		if err := r.emit("<div class=\"reply-marker\">%s</div>\n",
			html.EscapeString(replyNote(m.ReplyTo))); err != nil {
			return err
		}
	}

	for _, reply := range m.Replies {
		if err := r.writeMessage(reply, true); err != nil {
			return err
		}
	}

	return r.emit("</div>\n")
}

func (r *HTMLRenderer) writeBody(m *assemble.Message) error {
	for idx, part := range m.Parts {
		switch part.Kind {
		case assemble.PartText:
			if err := r.emit("<div class=\"balloon\"><span class=\"part-text\">%s</span></div>\n",
				html.EscapeString(part.Text)); err != nil {
				return err
			}
		case assemble.PartAttachment:
			if err := r.writeAttachment(part); err != nil {
				return err
			}
		case assemble.PartApp:
			if err := r.writeBalloon(m); err != nil {
				return err
			}
		}
		if reactions := m.Reactions[idx]; len(reactions) > 0 {
			var notes []string
			for _, reaction := range reactions {
				notes = append(notes, fmt.Sprintf("%s by %s", reaction.Kind.Verb(), reaction.By))
			}
			if err := r.emit("<div class=\"reactions\">%s</div>\n",
				html.EscapeString(strings.Join(notes, ", "))); err != nil {
				return err
			}
		}
		for _, sticker := range m.Stickers[idx] {
			label := "Sticker from " + sticker.By
			if sticker.Name != "" {
				label += ": " + sticker.Name
			}
			if err := r.emit("<div class=\"stickers\">%s</div>\n", html.EscapeString(label)); err != nil {
				return err
			}
		}
	}

	if len(m.Edits) > 0 {
		if err := r.emit("<details class=\"edits\"><summary>Edited</summary>\n<ol>\n"); err != nil {
			return err
		}
		for _, ev := range m.Edits {
			stamp := dates.Format(dates.ToTime(ev.Date))
			if err := r.emit("<li>%s: %s</li>\n",
				html.EscapeString(stamp), html.EscapeString(ev.Text)); err != nil {
				return err
			}
		}
		if err := r.emit("</ol>\n</details>\n"); err != nil {
			return err
		}
	}

	if m.Effect != nil {
		if err := r.emit("<div class=\"meta\">Sent with %s</div>\n",
			html.EscapeString(m.Effect.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (r *HTMLRenderer) writeAttachment(part assemble.Part) error {
	placement := r.placer.Place(part.Attachment)
	if placement.Missing {
		return r.emit("<div class=\"balloon\">&lt;attachment missing: %s&gt;</div>\n",
			html.EscapeString(placement.Name))
	}

	src := html.EscapeString(placement.Path)
	loading := ""
	if r.lazy {
		loading = " loading=\"lazy\""
	}
	mime := part.Attachment.MimeType
	if placement.Converted {
		mime = "image/jpeg"
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return r.emit("<img src=%q alt=%q%s>\n", src, html.EscapeString(placement.Name), loading)
	case strings.HasPrefix(mime, "video/"):
		return r.emit("<video controls src=%q%s></video>\n", src, loading)
	case strings.HasPrefix(mime, "audio/"):
		return r.emit("<audio controls src=%q></audio>\n", src)
	default:
		return r.emit("<a href=%q>%s</a>\n", src, html.EscapeString(placement.Name))
	}
}

func (r *HTMLRenderer) writeBalloon(m *assemble.Message) error {
	switch b := m.Balloon.(type) {
	case balloon.URLPreview:
		if err := r.emit("<a class=\"app-balloon\" href=%q>\n", html.EscapeString(b.URL)); err != nil {
			return err
		}
		if b.ImageRef != "" {
			loading := ""
			if r.lazy {
				loading = " loading=\"lazy\""
			}
			if err := r.emit("<img src=%q%s>\n", html.EscapeString(b.ImageRef), loading); err != nil {
				return err
			}
		}
		title := b.Title
		if title == "" {
			title = b.URL
		}
		if err := r.emit("<div class=\"caption\">%s</div>\n", html.EscapeString(title)); err != nil {
			return err
		}
		if b.Summary != "" {
			if err := r.emit("<div class=\"subtitle\">%s</div>\n", html.EscapeString(b.Summary)); err != nil {
				return err
			}
		}
		return r.emit("</a>\n")
	default:
		text := balloonText(m)
		return r.emit("<div class=\"app-balloon\"><span class=\"part-text\">%s</span></div>\n",
			html.EscapeString(text))
	}
}

func serviceClass(service string) string {
	switch service {
	case "iMessage":
		return "service-imessage"
	case "SMS":
		return "service-sms"
	default:
		return "service-other"
	}
}

func (r *HTMLRenderer) emit(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.w, format, args...); err != nil {
		return &OutputIo{Path: r.path, Reason: err.Error()}
	}
	return nil
}
