package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/sitegen/internal/version"
)

// handleStatic serves files from the output directory. Directory
// requests resolve to their index file; HTML responses get the reload
// client injected before delivery.
func (s *DevServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// path.Clean on a rooted path cannot escape upward, which confines
	// the lookup to the output tree.
	rel := path.Clean("/" + r.URL.Path)
	target := filepath.Join(s.cfg.Output, filepath.FromSlash(rel))

	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		target = filepath.Join(target, "index"+s.cfg.Templates.OutputExt)
		info, err = os.Stat(target)
	}
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if !isHTMLPath(target) {
		http.ServeFile(w, r, target)
		return
	}

	data, err := os.ReadFile(target)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	w.Write(injectReloadScript(data))
}

func isHTMLPath(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".html", ".htm":
		return true
	default:
		return false
	}
}

// handleHealth reports server status for quick diagnostics.
func (s *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.Get(),
		"clients":   clientCount,
		"output":    s.cfg.Output,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.log.Error(err, "encoding health response")
	}
}
