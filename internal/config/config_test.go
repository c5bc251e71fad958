package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateRequiresFormat(t *testing.T) {
	o := &Options{}
	if err := o.Validate(); err == nil {
		t.Error("expected error without format")
	}
	o.Diagnostics = true
	if err := o.Validate(); err != nil {
		t.Errorf("diagnostics run should not require format: %v", err)
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	o := &Options{Format: FormatTXT}
	if err := o.Validate(); err != nil {
		t.Fatal(err)
	}
	if o.CopyMethod != CopyDisabled {
		t.Errorf("copy method = %q, want disabled", o.CopyMethod)
	}
	if o.DBPath == "" || o.ExportPath == "" {
		t.Errorf("defaults not filled: %+v", o)
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	o := &Options{Format: "pdf"}
	if err := o.Validate(); err == nil {
		t.Error("expected error for unknown format")
	}
	o = &Options{Format: FormatTXT, CopyMethod: "zip"}
	if err := o.Validate(); err == nil {
		t.Error("expected error for unknown copy method")
	}
}

func TestWindow(t *testing.T) {
	o := &Options{Format: FormatTXT, StartDate: "2020-01-01", EndDate: "2021-01-01"}
	qc, err := o.Window()
	if err != nil {
		t.Fatal(err)
	}
	if qc.Start == nil || qc.End == nil || *qc.Start >= *qc.End {
		t.Errorf("window = %+v", qc)
	}

	// Half-open: a timestamp exactly at end is excluded.
	if qc.InRange(*qc.End) {
		t.Error("end bound is inclusive, want exclusive")
	}
	if !qc.InRange(*qc.End - 1) {
		t.Error("timestamp just before end excluded")
	}
}

func TestWindowInverted(t *testing.T) {
	o := &Options{StartDate: "2021-01-01", EndDate: "2020-01-01"}
	if _, err := o.Window(); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("got %v, want ErrInvalidDateRange", err)
	}
	o = &Options{StartDate: "garbage"}
	if _, err := o.Window(); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("got %v, want ErrInvalidDateRange", err)
	}
}

func TestFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "format = \"html\"\ncopy_method = \"efficient\"\nno_lazy = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadDefaults(path)
	if err != nil {
		t.Fatal(err)
	}
	o := &Options{}
	d.Apply(o)
	if o.Format != FormatHTML || o.CopyMethod != CopyEfficient || !o.NoLazy {
		t.Errorf("applied = %+v", o)
	}

	// A flag that was set explicitly wins over the file.
	o = &Options{Format: FormatTXT}
	d.Apply(o)
	if o.Format != FormatTXT {
		t.Errorf("flag overridden by file: %q", o.Format)
	}
}

func TestLoadDefaultsMissingFile(t *testing.T) {
	d, err := LoadDefaults(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if *d != (FileDefaults{}) {
		t.Errorf("got %+v, want zero defaults", d)
	}
}
