package export

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/imex/internal/config"
	"github.com/matheus3301/imex/internal/convert"
	"github.com/matheus3301/imex/internal/paths"
	"github.com/matheus3301/imex/internal/store"
)

// Placement is the outcome of the attachment placement policy for one
// attachment: the path to embed plus annotations for the renderer.
type Placement struct {
	// Path is the filesystem path the rendered output should reference.
	Path string
	// Name is the human-facing filename, for placeholders and captions.
	Name string
	// Missing marks an attachment whose file is absent; Path is empty.
	Missing bool
	// Converted marks a HEIC that is now a JPEG at Path.
	Converted bool
	// ConvertFailed carries the reason a conversion fell back to raw copy.
	ConvertFailed string
}

// Placer decides whether each attachment is referenced, copied, or
// converted, and produces the final path.
type Placer struct {
	method    config.CopyMethod
	platform  paths.Platform
	root      string
	outDir    string
	converter convert.Converter
	logger    *zap.Logger

	missing int
}

// NewPlacer builds the placement policy for a run. outDir is the export's
// attachments directory; it is created on first copy.
func NewPlacer(method config.CopyMethod, platform paths.Platform, root, outDir string, conv convert.Converter, logger *zap.Logger) *Placer {
	return &Placer{
		method:    method,
		platform:  platform,
		root:      root,
		outDir:    outDir,
		converter: conv,
		logger:    logger,
	}
}

// MissingCount reports how many placements found no file.
func (p *Placer) MissingCount() int { return p.missing }

func (p *Placer) missed(name string) Placement {
	p.missing++
	return Placement{Name: name, Missing: true}
}

// Place resolves one attachment row according to the copy method.
func (p *Placer) Place(att *store.AttachmentRow) Placement {
	name := att.TransferName
	if name == "" && att.Filename != "" {
		name = filepath.Base(att.Filename)
	}
	if att.Filename == "" {
		return p.missed(name)
	}

	src := paths.ResolveAttachment(p.platform, p.root, att.Filename)
	if _, err := os.Stat(src); err != nil {
		return p.missed(name)
	}

	if p.method == config.CopyDisabled {
		return Placement{Path: src, Name: name}
	}

	dst := p.destFor(src, name)
	if p.method == config.CopyCompatible && isHEIC(att) {
		jpeg := strings.TrimSuffix(dst, filepath.Ext(dst)) + ".jpeg"
		res := p.converter.ConvertHEICToJPEG(src, jpeg)
		switch res.Status {
		case convert.Ok:
			return Placement{Path: jpeg, Name: name, Converted: true}
		case convert.Failed:
			p.logger.Warn("HEIC conversion failed, copying original",
				zap.String("src", src), zap.String("reason", res.Reason))
			if err := copyFile(src, dst); err != nil {
				return p.missed(name)
			}
			return Placement{Path: dst, Name: name, ConvertFailed: res.Reason}
		case convert.NotAvailable:
			// Fall through to a raw copy without annotating the message.
		}
	}

	if err := copyFile(src, dst); err != nil {
		p.logger.Warn("attachment copy failed", zap.String("src", src), zap.Error(err))
		return p.missed(name)
	}
	return Placement{Path: dst, Name: name}
}

// destFor picks the copy destination, disambiguating repeated filenames
// with a short hash of the source file's content.
func (p *Placer) destFor(src, name string) string {
	if name == "" {
		name = filepath.Base(src)
	}
	dst := filepath.Join(p.outDir, name)
	if _, err := os.Stat(dst); err != nil {
		return dst
	}
	h := fnv.New64a()
	if in, err := os.Open(src); err == nil {
		_, _ = io.Copy(h, in)
		_ = in.Close()
	} else {
		_, _ = io.WriteString(h, src)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return filepath.Join(p.outDir, fmt.Sprintf("%s-%x%s", stem, h.Sum64()&0xFFFFFFFF, ext))
}

func isHEIC(att *store.AttachmentRow) bool {
	switch {
	case strings.EqualFold(att.MimeType, "image/heic"),
		strings.EqualFold(att.MimeType, "image/heif"),
		strings.EqualFold(att.UTI, "public.heic"),
		strings.EqualFold(att.UTI, "public.heif"):
		return true
	}
	ext := strings.ToLower(filepath.Ext(att.Filename))
	return ext == ".heic" || ext == ".heif"
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
