// Package renderer turns classified file entries into output files.
//
// Templates are executed through html/template against a render context
// loaded once per build pass; assets are copied byte-for-byte. Shared
// templates are parsed into a base set that every page render clones,
// so any page can reference any include. Output lands at its final path
// only via rename, so readers never observe a half-written file.
package renderer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitegen/internal/config"
	sgerrors "github.com/conneroisu/sitegen/internal/errors"
	"github.com/conneroisu/sitegen/internal/logging"
	"github.com/conneroisu/sitegen/internal/scanner"
)

// Context is the variable mapping made available to every template
// render in one build pass. Read-only during rendering.
type Context map[string]any

// LoadContext reads the render context from the first context file
// found in the input root (context.json, then context.yaml/yml). A
// missing file yields an empty context; a malformed one is an error.
func LoadContext(inputDir string) (Context, error) {
	for _, name := range scanner.ContextFiles {
		path := filepath.Join(inputDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading context file %s: %w", path, err)
		}

		ctx := Context{}
		switch filepath.Ext(name) {
		case ".json":
			err = json.Unmarshal(data, &ctx)
		default:
			err = yaml.Unmarshal(data, &ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing context file %s: %w", path, err)
		}
		return ctx, nil
	}

	return Context{}, nil
}

// Renderer writes output files for one build pass.
type Renderer struct {
	cfg    *config.Config
	rctx   Context
	shared *template.Template
	log    logging.Logger
}

// New creates a Renderer with the shared-templates directory parsed
// into the include set. A missing shared directory is fine; a shared
// template that fails to parse is skipped with a warning, and pages
// referencing it fail individually at render time.
func New(cfg *config.Config, rctx Context, log logging.Logger) (*Renderer, error) {
	r := &Renderer{
		cfg:    cfg,
		rctx:   rctx,
		shared: template.New("sitegen"),
		log:    log.WithComponent("renderer"),
	}

	if err := r.parseShared(); err != nil {
		return nil, err
	}

	return r, nil
}

// parseShared loads every file under the shared-templates directory
// into the base template set, named by its path relative to that
// directory (slash-separated).
func (r *Renderer) parseShared() error {
	sharedDir := r.cfg.SharedDir()
	info, err := os.Stat(sharedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading shared templates dir: %w", err)
	}
	if !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(sharedDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		if len(base) > 0 && base[0] == '.' {
			return nil
		}

		rel, err := filepath.Rel(sharedDir, path)
		if err != nil {
			return err
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading shared template %s: %w", path, err)
		}

		name := filepath.ToSlash(rel)
		if _, err := r.shared.New(name).Parse(string(src)); err != nil {
			r.log.Warn("skipping broken shared template", "path", path, "parse_error", err)
		}
		return nil
	})
}

// Process writes the output file for entry. Shared and ignored entries
// produce no output. All failures come back as a *errors.RenderError so
// the caller can continue with the remaining entries.
func (r *Renderer) Process(entry scanner.FileEntry) error {
	switch entry.Kind {
	case scanner.KindTemplate:
		return r.renderTemplate(entry)
	case scanner.KindAsset:
		return r.copyAsset(entry)
	default:
		return nil
	}
}

func (r *Renderer) renderTemplate(entry scanner.FileEntry) error {
	srcPath := filepath.Join(r.cfg.Input, entry.RelPath)
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return sgerrors.NewRenderError(entry.RelPath, err)
	}

	// Clone so per-page definitions never leak into other pages.
	set, err := r.shared.Clone()
	if err != nil {
		return sgerrors.NewRenderError(entry.RelPath, err)
	}

	page, err := set.New(filepath.ToSlash(entry.RelPath)).Parse(string(src))
	if err != nil {
		return sgerrors.NewRenderError(entry.RelPath, err)
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, map[string]any(r.rctx)); err != nil {
		return sgerrors.NewRenderError(entry.RelPath, err)
	}

	outPath := filepath.Join(r.cfg.Output, entry.OutputRel(r.cfg.Templates.OutputExt))
	if err := writeFileAtomic(outPath, buf.Bytes()); err != nil {
		return sgerrors.NewRenderError(entry.RelPath, err)
	}

	r.log.Debug("rendered template", "source", entry.RelPath, "output", outPath)
	return nil
}

func (r *Renderer) copyAsset(entry scanner.FileEntry) error {
	srcPath := filepath.Join(r.cfg.Input, entry.RelPath)
	outPath := filepath.Join(r.cfg.Output, entry.OutputRel(r.cfg.Templates.OutputExt))

	src, err := os.Open(srcPath)
	if err != nil {
		return sgerrors.NewRenderError(entry.RelPath, err)
	}
	defer src.Close()

	if err := writeStreamAtomic(outPath, src); err != nil {
		return sgerrors.NewRenderError(entry.RelPath, err)
	}

	r.log.Debug("copied asset", "source", entry.RelPath, "output", outPath)
	return nil
}

// writeFileAtomic writes data to path via a temp file in the target
// directory followed by a rename, creating parent directories as
// needed. Existing files are overwritten.
func writeFileAtomic(path string, data []byte) error {
	return writeStreamAtomic(path, bytes.NewReader(data))
}

func writeStreamAtomic(path string, src io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sitegen-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0o644)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
