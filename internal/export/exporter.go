// Package export drives renderers over the assembled message stream and
// owns the attachment placement policy.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/matheus3301/imex/internal/assemble"
	"github.com/matheus3301/imex/internal/config"
	"github.com/matheus3301/imex/internal/convert"
	"github.com/matheus3301/imex/internal/entity"
	"github.com/matheus3301/imex/internal/store"
)

// ErrOutputExists marks a non-empty export directory; the exporter refuses
// to overwrite.
var ErrOutputExists = errors.New("export directory is not empty")

// OutputIo reports a write failure during message emit; it is fatal for
// the conversation being written.
type OutputIo struct {
	Path   string
	Reason string
}

func (e *OutputIo) Error() string {
	return fmt.Sprintf("output error on %s: %s", e.Path, e.Reason)
}

// Renderer emits one conversation in a concrete format. A renderer owns
// its output file exclusively; messages arrive in (date, rowid) order.
type Renderer interface {
	BeginConversation(unique int, display string) error
	WriteMessage(m *assemble.Message) error
	EndConversation() error
}

// Summary is the user-facing tally of an export run.
type Summary struct {
	Conversations      int
	Messages           int
	UnreadableFields   int
	MissingAttachments int
	// Fatal counts conversation-aborting errors per unique chat.
	Fatal map[int]int
}

// Exporter wires the iterator, assembler, entity graph and renderers into
// one run. Conversations do not share mutable state; within each, order is
// strict.
type Exporter struct {
	db     *store.DB
	graph  *entity.Graph
	asm    *assemble.Assembler
	opts   *config.Options
	placer *Placer
	window store.QueryContext
	logger *zap.Logger
}

// New builds an exporter. The converter is only exercised in compatible
// copy mode.
func New(db *store.DB, graph *entity.Graph, asm *assemble.Assembler, opts *config.Options, conv convert.Converter, logger *zap.Logger) (*Exporter, error) {
	window, err := opts.Window()
	if err != nil {
		return nil, err
	}
	root := opts.AttachmentRoot
	placer := NewPlacer(opts.CopyMethod, opts.Platform, root,
		filepath.Join(opts.ExportPath, "attachments"), conv, logger)
	return &Exporter{
		db:     db,
		graph:  graph,
		asm:    asm,
		opts:   opts,
		placer: placer,
		window: window,
		logger: logger,
	}, nil
}

// orphanedID groups messages whose row has no chat join.
const orphanedID = -1

// Run streams the store once and writes every conversation. Row-level and
// I/O faults abort only the conversation they occur in.
func (e *Exporter) Run(ctx context.Context) (*Summary, error) {
	if err := e.prepareDir(); err != nil {
		return nil, err
	}

	ext := "." + string(e.opts.Format)
	namer := newNamer(e.opts.ExportPath, ext)
	renderers := make(map[int]Renderer)
	failed := make(map[int]bool)
	summary := &Summary{Fatal: make(map[int]int)}

	it, err := e.db.StreamMessages(ctx, e.window)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	for it.Next() {
		row := it.Row()
		// Tapbacks and stickers render under their targets.
		if assemble.IsAssociated(row) {
			continue
		}

		unique := orphanedID
		if row.HasChat {
			if u, ok := e.graph.UniqueChat(row.ChatID); ok {
				unique = u
			}
		}
		if failed[unique] {
			continue
		}

		m, err := e.asm.Assemble(ctx, row)
		if err != nil {
			e.logger.Error("conversation aborted",
				zap.Int64("rowid", row.RowID),
				zap.String("guid", row.GUID),
				zap.Int("conversation", unique),
				zap.Error(err))
			failed[unique] = true
			summary.Fatal[unique]++
			continue
		}
		if m.Row.NumReplies > 0 {
			replies, err := e.asm.AssembleReplies(ctx, m)
			if err == nil {
				m.Replies = replies
			}
		}

		r, err := e.rendererFor(renderers, namer, unique)
		if err != nil {
			return nil, err
		}
		if err := r.WriteMessage(m); err != nil {
			e.logger.Error("conversation aborted on write",
				zap.Int("conversation", unique), zap.Error(err))
			failed[unique] = true
			summary.Fatal[unique]++
			continue
		}

		summary.Messages++
		summary.UnreadableFields += len(m.Unreadables)
	}
	if err := it.Err(); err != nil {
		return summary, err
	}

	// Close in a stable order so repeated runs behave identically.
	uniques := make([]int, 0, len(renderers))
	for u := range renderers {
		uniques = append(uniques, u)
	}
	sort.Ints(uniques)
	for _, u := range uniques {
		if err := renderers[u].EndConversation(); err != nil {
			summary.Fatal[u]++
		}
	}
	summary.Conversations = len(renderers)
	summary.MissingAttachments = e.placer.MissingCount()
	return summary, nil
}

func (e *Exporter) prepareDir() error {
	dir := e.opts.ExportPath
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &OutputIo{Path: dir, Reason: err.Error()}
		}
	case err != nil:
		return &OutputIo{Path: dir, Reason: err.Error()}
	case len(entries) > 0:
		return fmt.Errorf("%w: %s", ErrOutputExists, dir)
	}
	return nil
}

func (e *Exporter) rendererFor(renderers map[int]Renderer, namer *namer, unique int) (Renderer, error) {
	if r, ok := renderers[unique]; ok {
		return r, nil
	}
	display := e.displayFor(unique)
	path := namer.fileFor(e.nameFor(unique))

	var (
		r   Renderer
		err error
	)
	switch e.opts.Format {
	case config.FormatHTML:
		r, err = NewHTMLRenderer(path, e.placer, !e.opts.NoLazy)
	default:
		r, err = NewTextRenderer(path, e.placer)
	}
	if err != nil {
		return nil, err
	}
	if err := r.BeginConversation(unique, display); err != nil {
		return nil, err
	}
	renderers[unique] = r
	e.logger.Info("conversation started",
		zap.Int("conversation", unique), zap.String("file", filepath.Base(path)))
	return r, nil
}

func (e *Exporter) displayFor(unique int) string {
	if unique == orphanedID {
		return "Orphaned"
	}
	return e.graph.DisplayName(unique)
}

// nameFor picks the filename stem: participants' displays, per the output
// layout contract.
func (e *Exporter) nameFor(unique int) string {
	if unique == orphanedID {
		return "Orphaned"
	}
	return e.graph.ParticipantDisplay(unique)
}
