// Package config holds the resolved run options: CLI flags layered over
// the optional ~/.imex/config.toml defaults file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matheus3301/imex/internal/dates"
	"github.com/matheus3301/imex/internal/paths"
	"github.com/matheus3301/imex/internal/store"
)

// Format selects the rendered output kind.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
)

// CopyMethod selects the attachment placement policy.
type CopyMethod string

const (
	// CopyCompatible copies attachments and converts HEIC to JPEG.
	CopyCompatible CopyMethod = "compatible"
	// CopyEfficient copies raw bytes preserving the original format.
	CopyEfficient CopyMethod = "efficient"
	// CopyDisabled references attachments in place.
	CopyDisabled CopyMethod = "disabled"
)

// ErrInvalidDateRange marks an unparseable or inverted date filter.
var ErrInvalidDateRange = errors.New("invalid date range")

// Options is the full configuration of one export run.
type Options struct {
	Diagnostics bool
	Format      Format
	CopyMethod  CopyMethod
	DBPath      string
	Platform    paths.Platform
	ExportPath  string
	StartDate   string
	EndDate     string
	NoLazy      bool
	CustomName  string

	// AttachmentRoot overrides where tilde-prefixed attachment paths
	// resolve; empty means the user's home (macOS) or the backup root
	// (iOS).
	AttachmentRoot string
}

// FileDefaults mirrors the optional config.toml; every field backs the
// default of one option.
type FileDefaults struct {
	Format         string `toml:"format"`
	CopyMethod     string `toml:"copy_method"`
	DBPath         string `toml:"db_path"`
	ExportPath     string `toml:"export_path"`
	NoLazy         bool   `toml:"no_lazy"`
	AttachmentRoot string `toml:"attachment_root"`
}

// DefaultsPath returns ~/.imex/config.toml.
func DefaultsPath() string {
	return filepath.Join(paths.Home(), ".imex", "config.toml")
}

// LoadDefaults reads the defaults file. A missing file yields zero
// defaults and no error.
func LoadDefaults(path string) (*FileDefaults, error) {
	var d FileDefaults
	if _, err := os.Stat(path); err != nil {
		return &d, nil
	}
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &d, nil
}

// Apply fills unset options from the defaults file. Flags always win.
func (d *FileDefaults) Apply(o *Options) {
	if o.Format == "" && d.Format != "" {
		o.Format = Format(d.Format)
	}
	if o.CopyMethod == "" && d.CopyMethod != "" {
		o.CopyMethod = CopyMethod(d.CopyMethod)
	}
	if o.DBPath == "" {
		o.DBPath = d.DBPath
	}
	if o.ExportPath == "" {
		o.ExportPath = d.ExportPath
	}
	if o.AttachmentRoot == "" {
		o.AttachmentRoot = d.AttachmentRoot
	}
	if d.NoLazy {
		o.NoLazy = true
	}
}

// Validate normalises and checks the options, filling derived defaults.
func (o *Options) Validate() error {
	if !o.Diagnostics {
		switch o.Format {
		case FormatTXT, FormatHTML:
		case "":
			return errors.New("--format is required")
		default:
			return fmt.Errorf("unknown format %q", o.Format)
		}
	}
	switch o.CopyMethod {
	case CopyCompatible, CopyEfficient, CopyDisabled:
	case "":
		o.CopyMethod = CopyDisabled
	default:
		return fmt.Errorf("unknown copy method %q", o.CopyMethod)
	}
	if o.DBPath == "" {
		o.DBPath = paths.DefaultDBPath(o.Platform, "")
	}
	if o.ExportPath == "" {
		o.ExportPath = filepath.Join(paths.Home(), "imessage_export")
	}
	if _, err := o.Window(); err != nil {
		return err
	}
	return nil
}

// Window converts the date flags to a store query context. Both bounds are
// optional; when both are set, start must precede end.
func (o *Options) Window() (store.QueryContext, error) {
	var qc store.QueryContext
	if o.StartDate != "" {
		ts, err := dates.ParseDateArg(o.StartDate)
		if err != nil {
			return qc, fmt.Errorf("%w: %v", ErrInvalidDateRange, err)
		}
		qc.Start = &ts
	}
	if o.EndDate != "" {
		ts, err := dates.ParseDateArg(o.EndDate)
		if err != nil {
			return qc, fmt.Errorf("%w: %v", ErrInvalidDateRange, err)
		}
		qc.End = &ts
	}
	if qc.Start != nil && qc.End != nil && *qc.Start >= *qc.End {
		return qc, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidDateRange, o.StartDate, o.EndDate)
	}
	return qc, nil
}
