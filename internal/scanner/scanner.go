// Package scanner provides input-tree discovery and classification.
//
// The scanner walks the input directory once and classifies every file
// as a template (rendered through the engine), an asset (copied
// verbatim), a shared template (include-only, no direct output), or
// ignored. Traversal is lexical per directory level so repeated scans
// of an unchanged tree produce identical sequences, which is what makes
// builds reproducible.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitegen/internal/config"
	sgerrors "github.com/conneroisu/sitegen/internal/errors"
)

// Kind classifies a file entry.
type Kind int

const (
	// KindTemplate is a source file rendered through the template engine.
	KindTemplate Kind = iota
	// KindAsset is a source file copied byte-for-byte to output.
	KindAsset
	// KindShared is a file under the shared-templates directory,
	// resolvable as an include but never written to output directly.
	KindShared
	// KindIgnored is a file excluded from the build entirely.
	KindIgnored
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindTemplate:
		return "template"
	case KindAsset:
		return "asset"
	case KindShared:
		return "shared"
	case KindIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// FileEntry is one classified file under the input root. Immutable once
// produced.
type FileEntry struct {
	// RelPath is the path relative to the input root.
	RelPath string
	Kind    Kind
}

// OutputRel returns the output path relative to the output root:
// templates get their extension replaced by outputExt, assets map
// unchanged. Shared and ignored entries have no output path.
func (e FileEntry) OutputRel(outputExt string) string {
	if e.Kind == KindShared || e.Kind == KindIgnored {
		return ""
	}
	if e.Kind == KindTemplate {
		ext := filepath.Ext(e.RelPath)
		return strings.TrimSuffix(e.RelPath, ext) + outputExt
	}
	return e.RelPath
}

// ContextFiles are the render-context file names looked up in the input
// root. They configure the build and are never copied to output.
var ContextFiles = []string{"context.json", "context.yaml", "context.yml"}

// Scanner classifies paths under one input root.
type Scanner struct {
	cfg *config.Config
	// outputRel is the output directory relative to the input root, or
	// "" when the output directory lives outside the input tree.
	outputRel string
	// ignoreRel holds the ignore-list entries normalized relative to
	// the input root.
	ignoreRel []string
}

// New creates a Scanner for cfg.
func New(cfg *config.Config) *Scanner {
	s := &Scanner{cfg: cfg}

	if rel, err := relUnder(cfg.Input, cfg.Output); err == nil {
		s.outputRel = rel
	}

	for _, ig := range cfg.Ignore {
		if filepath.IsAbs(ig) {
			if rel, err := relUnder(cfg.Input, ig); err == nil {
				s.ignoreRel = append(s.ignoreRel, rel)
			}
			continue
		}
		s.ignoreRel = append(s.ignoreRel, filepath.Clean(ig))
	}

	return s
}

// relUnder returns child relative to parent, or an error if child does
// not live under parent.
func relUnder(parent, child string) (string, error) {
	pAbs, err := filepath.Abs(parent)
	if err != nil {
		return "", err
	}
	cAbs, err := filepath.Abs(child)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(pAbs, cAbs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fs.ErrNotExist
	}
	return rel, nil
}

// Scan walks the input tree and returns one FileEntry per discovered
// file, in deterministic lexical order. Fails with a PathError when the
// input root is missing or not a directory. Subtrees classified as
// ignored are not descended into.
func (s *Scanner) Scan() ([]FileEntry, error) {
	info, err := os.Stat(s.cfg.Input)
	if err != nil {
		return nil, &sgerrors.PathError{Path: s.cfg.Input, Err: err}
	}
	if !info.IsDir() {
		return nil, &sgerrors.PathError{Path: s.cfg.Input, Err: fs.ErrInvalid}
	}

	var entries []FileEntry

	err = filepath.WalkDir(s.cfg.Input, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(s.cfg.Input, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if s.isIgnored(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		entries = append(entries, FileEntry{RelPath: rel, Kind: s.Classify(rel)})
		return nil
	})
	if err != nil {
		return nil, &sgerrors.PathError{Path: s.cfg.Input, Err: err}
	}

	return entries, nil
}

// Classify determines the Kind of a path relative to the input root.
// The precedence is ignored > shared > template > asset, so a dotfile
// inside the shared directory is still ignored.
func (s *Scanner) Classify(rel string) Kind {
	rel = filepath.Clean(rel)

	switch {
	case s.isIgnored(rel):
		return KindIgnored
	case s.IsShared(rel):
		return KindShared
	case s.cfg.IsTemplateExt(filepath.Ext(rel)):
		return KindTemplate
	default:
		return KindAsset
	}
}

// IsShared reports whether rel lives under the shared-templates
// directory.
func (s *Scanner) IsShared(rel string) bool {
	return underDir(rel, s.cfg.Templates.Dir)
}

// IsContextFile reports whether rel names one of the render-context
// files in the input root.
func (s *Scanner) IsContextFile(rel string) bool {
	rel = filepath.Clean(rel)
	for _, name := range ContextFiles {
		if rel == name {
			return true
		}
	}
	return false
}

func (s *Scanner) isIgnored(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}

	if s.outputRel != "" && underDir(rel, s.outputRel) {
		return true
	}

	if s.IsContextFile(rel) {
		return true
	}

	for _, ig := range s.ignoreRel {
		if underDir(rel, ig) {
			return true
		}
	}

	return false
}

// underDir reports whether rel equals dir or lives beneath it.
func underDir(rel, dir string) bool {
	if dir == "" || dir == "." {
		return false
	}
	return rel == dir || strings.HasPrefix(rel, dir+string(filepath.Separator))
}
