// Package loader turns files on disk into domain.Documents.
//
// Parsing is chosen by the extension of the display name, because uploads
// usually land in temp files whose own names carry no useful extension.
package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"docqa/internal/domain"
)

// ParseFunc extracts the pages of a single file.
type ParseFunc func(ctx context.Context, path string) ([]domain.Page, error)

// Loader dispatches files to a parser by extension.
type Loader struct {
	parsers map[string]ParseFunc
}

// New returns a loader that understands pdf, txt, md and html files.
func New() *Loader {
	l := &Loader{parsers: make(map[string]ParseFunc)}
	l.Register(".pdf", parsePDF)
	l.Register(".txt", parseText)
	l.Register(".md", parseMarkdown)
	l.Register(".markdown", parseMarkdown)
	l.Register(".html", parseHTML)
	l.Register(".htm", parseHTML)
	return l
}

// Register adds or replaces the parser for an extension (with leading dot).
func (l *Loader) Register(ext string, fn ParseFunc) {
	l.parsers[strings.ToLower(ext)] = fn
}

// Supported reports whether name has an extension this loader can parse.
func (l *Loader) Supported(name string) bool {
	_, ok := l.parsers[Extension(name)]
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (l *Loader) Extensions() []string {
	out := make([]string, 0, len(l.parsers))
	for ext := range l.parsers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Load parses file. Files with an unknown extension return domain.ErrUnsupportedFile.
func (l *Loader) Load(ctx context.Context, file domain.FileRef) (domain.Document, error) {
	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}
	parse, ok := l.parsers[Extension(name)]
	if !ok {
		return domain.Document{}, fmt.Errorf("%s: %w", name, domain.ErrUnsupportedFile)
	}
	pages, err := parse(ctx, file.Path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse %s: %w", name, err)
	}
	texts := make([]string, 0, len(pages))
	kept := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		kept = append(kept, p)
		texts = append(texts, p.Text)
	}
	return domain.Document{
		ID:       hashString(name + "\x00" + file.Path),
		Path:     file.Path,
		Filename: name,
		Content:  strings.Join(texts, "\n"),
		Pages:    kept,
	}, nil
}

// Extension returns the lowercase extension of name, including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
