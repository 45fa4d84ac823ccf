// Package scaffold generates a starter site for the init command.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const indexPage = `{{template "header.html" .}}
<main>
  <h1>{{.title}}</h1>
  <p>{{.description}}</p>
</main>
{{template "footer.html" .}}
`

const headerPartial = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.title}}</title>
  <link rel="stylesheet" href="/style.css">
</head>
<body>
`

const footerPartial = `</body>
</html>
`

const stylesheet = `body {
  max-width: 40rem;
  margin: 2rem auto;
  font-family: system-ui, sans-serif;
  line-height: 1.6;
}
`

const configFile = `input: .
output: out
templates:
  dir: templates
server:
  port: 8000
`

// Create scaffolds a starter site in dir: an index page, shared header
// and footer templates, a stylesheet, a render context, and a config
// file. The site title is derived from the directory name. dir must be
// new or empty.
func Create(dir string) error {
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return fmt.Errorf("directory %s is not empty", dir)
	}

	title := TitleFromDir(dir)
	contextFile := fmt.Sprintf(
		"{\n  \"title\": %q,\n  \"description\": \"Built with sitegen.\"\n}\n", title)

	files := map[string]string{
		"index.html":              indexPage,
		"style.css":               stylesheet,
		"context.json":            contextFile,
		".sitegen.yml":            configFile,
		"templates/header.html":   headerPartial,
		"templates/footer.html":   footerPartial,
	}

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	return nil
}

// TitleFromDir turns a directory name like "my-site" into "My Site".
func TitleFromDir(dir string) string {
	name := filepath.Base(dir)
	if name == "." || name == string(filepath.Separator) {
		if abs, err := filepath.Abs(dir); err == nil {
			name = filepath.Base(abs)
		}
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(name)
}
