// Command imex exports an iMessage archive to text or HTML transcripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/matheus3301/imex/internal/app"
	"github.com/matheus3301/imex/internal/config"
	"github.com/matheus3301/imex/internal/export"
	"github.com/matheus3301/imex/internal/paths"
	"github.com/matheus3301/imex/internal/store"
)

// Exit codes.
const (
	exitUsage       = 1
	exitStoreOpen   = 2
	exitDateRange   = 3
	exitOutputDirty = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "imex",
		Usage: "Export an iMessage archive to text or HTML",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "diagnostics", Usage: "print store diagnostics and exit"},
			&cli.StringFlag{Name: "format", Usage: "output format: txt or html"},
			&cli.StringFlag{Name: "copy-method", Usage: "attachment policy: compatible, efficient or disabled"},
			&cli.StringFlag{Name: "db-path", Usage: "path to chat.db or an unencrypted backup directory"},
			&cli.StringFlag{Name: "platform", Usage: "source platform: macOS or iOS"},
			&cli.StringFlag{Name: "export-path", Usage: "output directory (must be empty)"},
			&cli.StringFlag{Name: "start-date", Usage: "include messages on or after YYYY-MM-DD"},
			&cli.StringFlag{Name: "end-date", Usage: "include messages before YYYY-MM-DD"},
			&cli.BoolFlag{Name: "no-lazy", Usage: "disable lazy loading of media in HTML output"},
			&cli.StringFlag{Name: "custom-name", Usage: "display name to use for yourself"},
		},
		Action: run,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		var coder cli.ExitCoder
		if errors.As(err, &coder) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitUsage)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	opts, err := optionsFrom(cmd)
	if err != nil {
		return exitErr(err)
	}
	if err := app.Run(ctx, opts); err != nil {
		return exitErr(err)
	}
	return nil
}

func optionsFrom(cmd *cli.Command) (*config.Options, error) {
	opts := &config.Options{
		Diagnostics: cmd.Bool("diagnostics"),
		Format:      config.Format(cmd.String("format")),
		CopyMethod:  config.CopyMethod(cmd.String("copy-method")),
		DBPath:      cmd.String("db-path"),
		ExportPath:  cmd.String("export-path"),
		StartDate:   cmd.String("start-date"),
		EndDate:     cmd.String("end-date"),
		NoLazy:      cmd.Bool("no-lazy"),
		CustomName:  cmd.String("custom-name"),
	}

	platform, err := paths.ParsePlatform(cmd.String("platform"))
	if err != nil {
		return nil, err
	}
	opts.Platform = platform

	defaults, err := config.LoadDefaults(config.DefaultsPath())
	if err != nil {
		return nil, err
	}
	defaults.Apply(opts)

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// exitErr maps the error taxonomy onto the documented exit codes.
func exitErr(err error) error {
	switch {
	case errors.Is(err, store.ErrStoreOpen):
		return cli.Exit(err.Error(), exitStoreOpen)
	case errors.Is(err, config.ErrInvalidDateRange):
		return cli.Exit(err.Error(), exitDateRange)
	case errors.Is(err, export.ErrOutputExists):
		return cli.Exit(err.Error(), exitOutputDirty)
	default:
		return cli.Exit(err.Error(), exitUsage)
	}
}
