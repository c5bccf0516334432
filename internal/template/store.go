package template

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go-image-playground/internal/model"
)

// Extension delimits prompt template files on disk.
const Extension = ".txt"

// Template is a named block of reusable prompt text stored as a file.
type Template struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Store reads prompt templates from one directory. Files are created and
// deleted externally; the store never writes.
type Store struct {
	dirAbs string
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("template directory cannot be empty")
	}

	dirAbs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve template directory: %w", err)
	}

	return &Store{dirAbs: dirAbs}, nil
}

func (s *Store) DirAbs() string {
	return s.dirAbs
}

// List returns the available template names, extension stripped, sorted
// lexicographically. A missing or unreadable directory degrades to an empty
// list.
func (s *Store) List() []string {
	entries, err := os.ReadDir(s.dirAbs)
	if err != nil {
		slog.Error("failed to read template directory", "dir", s.dirAbs, "error", err)
		return []string{}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), Extension))
	}

	sort.Strings(names)
	return names
}

// Get fetches one template by name. Names resolving outside the configured
// directory and filesystem read failures both report not-found; raw
// filesystem errors never reach the caller.
func (s *Store) Get(name string) (*Template, error) {
	normalized := stripExtension(strings.TrimSpace(name))
	if normalized == "" {
		return nil, model.ErrTemplateNotFound
	}

	resolved, err := filepath.Abs(filepath.Join(s.dirAbs, normalized+Extension))
	if err != nil {
		return nil, model.ErrTemplateNotFound
	}

	if !isWithinDir(s.dirAbs, resolved) {
		return nil, model.ErrTemplateNotFound
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		slog.Error("failed to read template", "name", normalized, "error", err)
		return nil, model.ErrTemplateNotFound
	}

	return &Template{Name: normalized, Content: string(content)}, nil
}

// stripExtension removes a trailing extension suffix so both "sunset" and
// "sunset.txt" address the same file.
func stripExtension(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func isWithinDir(dirAbs string, candidateAbs string) bool {
	if candidateAbs == dirAbs {
		return false
	}

	return strings.HasPrefix(candidateAbs, dirAbs+string(filepath.Separator))
}
