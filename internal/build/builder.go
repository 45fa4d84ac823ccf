// Package build orchestrates one build pass: scan the input tree, load
// the render context, and drive the renderer over every classified
// entry. A failing entry is recorded in the report and never blocks the
// rest of the pass.
package build

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/conneroisu/sitegen/internal/config"
	"github.com/conneroisu/sitegen/internal/logging"
	"github.com/conneroisu/sitegen/internal/renderer"
	"github.com/conneroisu/sitegen/internal/scanner"
)

// Scope selects which entries a build pass renders.
type Scope struct {
	full  bool
	paths map[string]struct{}
}

// FullScope renders every classified entry. Always used for the
// initial build.
func FullScope() Scope {
	return Scope{full: true}
}

// AffectedScope renders only the entries named by paths (relative to
// the input root). A path under the shared-templates directory or a
// context file escalates the pass to a full rebuild, since any page may
// depend on them.
func AffectedScope(paths []string) Scope {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return Scope{paths: set}
}

// Failure records one entry that could not be rendered or copied.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes one build pass.
type Report struct {
	Succeeded []string
	Failed    []Failure
	Full      bool
	Duration  time.Duration
}

// OK reports whether the pass completed without failures.
func (r *Report) OK() bool { return len(r.Failed) == 0 }

// Builder runs build passes. At most one pass executes at a time;
// concurrent calls serialize.
type Builder struct {
	cfg *config.Config
	log logging.Logger
	mu  sync.Mutex
}

// New creates a Builder for cfg.
func New(cfg *config.Config, log logging.Logger) *Builder {
	return &Builder{
		cfg: cfg,
		log: log.WithComponent("build"),
	}
}

// Build runs one pass over the input tree. The returned error is
// non-nil only for failures that abort the pass before any rendering
// (bad input root, unreadable context file); per-entry failures land in
// the report instead.
func (b *Builder) Build(ctx context.Context, scope Scope) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()

	scn := scanner.New(b.cfg)
	entries, err := scn.Scan()
	if err != nil {
		return nil, err
	}

	rctx, err := renderer.LoadContext(b.cfg.Input)
	if err != nil {
		return nil, err
	}

	rend, err := renderer.New(b.cfg, rctx, b.log)
	if err != nil {
		return nil, err
	}

	full := scope.full || b.escalates(scn, scope)
	report := &Report{Full: full}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if entry.Kind != scanner.KindTemplate && entry.Kind != scanner.KindAsset {
			continue
		}
		if !full {
			if _, ok := scope.paths[entry.RelPath]; !ok {
				continue
			}
		}

		if err := rend.Process(entry); err != nil {
			b.log.Error(err, "entry failed", "path", entry.RelPath)
			report.Failed = append(report.Failed, Failure{Path: entry.RelPath, Err: err})
			continue
		}
		report.Succeeded = append(report.Succeeded, entry.RelPath)
	}

	report.Duration = time.Since(start)
	b.log.Info("build pass complete",
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"full", full,
		"duration", report.Duration)

	return report, nil
}

// escalates reports whether any affected path invalidates the whole
// tree. Shared templates and context files may feed every page, and
// dependency tracking is deliberately out of scope, so the safe answer
// is a full rebuild.
func (b *Builder) escalates(scn *scanner.Scanner, scope Scope) bool {
	for p := range scope.paths {
		if scn.IsShared(p) || scn.IsContextFile(p) {
			return true
		}
	}
	return false
}

// Clean removes the output directory. Only invoked on explicit request
// (the build command's --clean flag); a build pass never deletes output
// on its own.
func (b *Builder) Clean() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return os.RemoveAll(b.cfg.Output)
}
