package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/matheus3301/imex/internal/assemble"
	"github.com/matheus3301/imex/internal/config"
	"github.com/matheus3301/imex/internal/convert"
	"github.com/matheus3301/imex/internal/entity"
	"github.com/matheus3301/imex/internal/export"
	"github.com/matheus3301/imex/internal/paths"
	"github.com/matheus3301/imex/internal/store"
)

// Runtime owns one run: open the store, build the identity graph, then
// either emit diagnostics or drive the export.
type Runtime struct {
	opts   *config.Options
	logger *zap.Logger
	conv   convert.Converter
}

// NewRuntime wires the runtime from its fx-provided dependencies.
func NewRuntime(opts *config.Options, logger *zap.Logger, conv convert.Converter) *Runtime {
	return &Runtime{opts: opts, logger: logger, conv: conv}
}

// Run executes the configured action. The database connection is released
// on every exit path.
func (r *Runtime) Run(ctx context.Context) error {
	defer func() { _ = r.logger.Sync() }()

	r.resolvePlatform()

	db, err := store.Open(r.opts.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	r.logger.Info("store opened",
		zap.String("path", r.opts.DBPath),
		zap.String("platform", r.opts.Platform.String()))

	if r.opts.Diagnostics {
		return r.diagnostics(ctx, db)
	}
	return r.export(ctx, db)
}

// resolvePlatform auto-detects an iOS backup when --db-path points at a
// backup directory, and rewrites the options to the inner database.
func (r *Runtime) resolvePlatform() {
	opts := r.opts
	info, err := os.Stat(opts.DBPath)
	if err != nil || !info.IsDir() {
		return
	}
	root := opts.DBPath
	opts.Platform = paths.DetectPlatform(root)
	opts.DBPath = paths.DefaultDBPath(opts.Platform, root)
	if opts.AttachmentRoot == "" {
		opts.AttachmentRoot = root
	}
}

func (r *Runtime) export(ctx context.Context, db *store.DB) error {
	graph, err := r.buildGraph(ctx, db)
	if err != nil {
		return err
	}
	window, err := r.opts.Window()
	if err != nil {
		return err
	}
	asm, err := assemble.New(ctx, db, graph, window, r.logger)
	if err != nil {
		return err
	}
	exp, err := export.New(db, graph, asm, r.opts, r.conv, r.logger)
	if err != nil {
		return err
	}

	summary, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	r.printSummary(summary)
	return nil
}

func (r *Runtime) buildGraph(ctx context.Context, db *store.DB) (*entity.Graph, error) {
	handles, err := db.Handles(ctx)
	if err != nil {
		return nil, err
	}
	chats, err := db.Chats(ctx)
	if err != nil {
		return nil, err
	}
	participants, err := db.ChatParticipants(ctx)
	if err != nil {
		return nil, err
	}
	graph := entity.Build(handles, chats, participants, r.opts.CustomName)
	r.logger.Info("entity graph built",
		zap.Int("handles", len(handles)),
		zap.Int("chats", len(chats)),
		zap.Int("conversations", len(graph.UniqueChats())))
	return graph, nil
}

func (r *Runtime) printSummary(s *export.Summary) {
	fmt.Printf("Exported %d conversations, %d messages\n", s.Conversations, s.Messages)
	if s.UnreadableFields > 0 {
		fmt.Printf("Messages with unreadable fields: %d\n", s.UnreadableFields)
	}
	if s.MissingAttachments > 0 {
		fmt.Printf("Missing attachments: %d\n", s.MissingAttachments)
	}
	for conversation, count := range s.Fatal {
		fmt.Printf("Conversation %d aborted after %d fatal error(s)\n", conversation, count)
	}
}

func (r *Runtime) diagnostics(ctx context.Context, db *store.DB) error {
	opts := r.opts
	resolve := func(filename string) string {
		return paths.ResolveAttachment(opts.Platform, opts.AttachmentRoot, filename)
	}
	report, err := db.Diagnostics(ctx, resolve)
	if err != nil {
		return err
	}

	fmt.Println("iMessage store diagnostics")
	fmt.Printf("    Messages: %d\n", report.TotalMessages)
	if report.DanglingMessages > 0 {
		fmt.Printf("    Messages not associated with a chat: %d\n", report.DanglingMessages)
	}
	if report.MultiChatMessages > 0 {
		fmt.Printf("    Messages belonging to more than one chat: %d\n", report.MultiChatMessages)
	}
	if report.DuplicatedHandles > 0 {
		fmt.Printf("    Extra handles merged into an existing contact: %d\n", report.DuplicatedHandles)
	}
	if report.MissingFiles > 0 {
		fmt.Printf("    Attachment files missing from disk: %d\n", report.MissingFiles)
	}
	return nil
}
