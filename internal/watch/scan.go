// Package watch binds the buffers of a session to files on disk and keeps
// them in sync as the files change.
package watch

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/compose"
)

// MaxFileSize is the largest file loaded into a buffer (1 MB).
const MaxFileSize int64 = 1 << 20

// DefaultExcludes are directory names never descended into.
var DefaultExcludes = []string{
	".git",
	"node_modules",
	"vendor",
	"dist",
	"build",
	".next",
	".idea",
	".vscode",
}

// Patterns holds the doublestar globs that select each buffer's file.
type Patterns struct {
	HTML []string `koanf:"html" yaml:"html"`
	CSS  []string `koanf:"css" yaml:"css"`
	JS   []string `koanf:"js" yaml:"js"`
}

// DefaultPatterns matches any .html, .css and .js file.
func DefaultPatterns() Patterns {
	return Patterns{
		HTML: []string{"**/*.html", "**/*.htm"},
		CSS:  []string{"**/*.css"},
		JS:   []string{"**/*.js", "**/*.mjs"},
	}
}

func (p Patterns) forLanguage(lang buffer.Language) []string {
	switch lang {
	case buffer.HTML:
		return p.HTML
	case buffer.CSS:
		return p.CSS
	case buffer.JS:
		return p.JS
	}
	return nil
}

// Bindings maps each buffer to the file feeding it. Unbound buffers are
// absent.
type Bindings map[buffer.Language]string

// Language returns the buffer bound to path.
func (b Bindings) Language(path string) (buffer.Language, bool) {
	for lang, p := range b {
		if p == path {
			return lang, true
		}
	}
	return "", false
}

func shouldExcludeDir(name string) bool {
	for _, excl := range DefaultExcludes {
		if strings.EqualFold(name, excl) {
			return true
		}
	}
	return false
}

// Matches reports whether relPath matches any pattern, either as a whole
// path or by its base name.
func Matches(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.PathMatch(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.PathMatch(pattern, filepath.Base(normalized)); err == nil && matched {
			return true
		}
	}
	return false
}

// Scan walks root and binds each buffer to the first matching file in
// lexical path order.
func Scan(root string, patterns Patterns) (Bindings, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}

	var rels []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if path != abs && shouldExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return nil
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch: traversal: %w", err)
	}
	sort.Strings(rels)

	bindings := make(Bindings, 3)
	for _, lang := range buffer.Languages {
		for _, rel := range rels {
			if Matches(rel, patterns.forLanguage(lang)) {
				bindings[lang] = filepath.Join(abs, filepath.FromSlash(rel))
				break
			}
		}
	}
	return bindings, nil
}

// ReadFile loads a bound file, refusing binary or oversized content.
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if int64(len(data)) > MaxFileSize {
		return "", fmt.Errorf("%s exceeds %d bytes", path, MaxFileSize)
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	for _, c := range head {
		if c == 0 {
			return "", fmt.Errorf("%s looks binary", path)
		}
	}
	return string(data), nil
}

// Load reads every bound file. Unbound buffers are empty.
func Load(b Bindings) (compose.Source, error) {
	var src compose.Source
	for lang, path := range b {
		content, err := ReadFile(path)
		if err != nil {
			return compose.Source{}, err
		}
		switch lang {
		case buffer.HTML:
			src.HTML = content
		case buffer.CSS:
			src.CSS = content
		case buffer.JS:
			src.JS = content
		}
	}
	return src, nil
}
