// Package app composes one exporter run: providers for the logger,
// converter and runtime, wired through fx.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/imex/internal/config"
	"github.com/matheus3301/imex/internal/convert"
	"github.com/matheus3301/imex/internal/logging"
)

// Module returns the fx module composing a run from resolved options.
func Module(opts *config.Options) fx.Option {
	return fx.Module("imex",
		fx.Supply(opts),
		fx.Provide(
			provideLogger,
			provideConverter,
			NewRuntime,
		),
	)
}

func provideLogger(opts *config.Options) (*zap.Logger, error) {
	logPath := ""
	if opts.Diagnostics {
		logPath = filepath.Join(opts.ExportPath, "diagnostics.log")
	}
	return logging.New(logPath, false)
}

func provideConverter(opts *config.Options) convert.Converter {
	if opts.CopyMethod == config.CopyCompatible {
		return convert.Detect()
	}
	return convert.None()
}

// Run builds the fx application and executes the runtime to completion.
func Run(ctx context.Context, opts *config.Options) error {
	var rt *Runtime
	fxApp := fx.New(
		fx.NopLogger,
		Module(opts),
		fx.Populate(&rt),
	)
	if err := fxApp.Err(); err != nil {
		return fmt.Errorf("compose run: %w", err)
	}
	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	runErr := rt.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
