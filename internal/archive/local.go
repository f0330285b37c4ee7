package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalArchive stores run reports as files under a directory
type LocalArchive struct {
	root string
}

// Ensure LocalArchive implements Archive
var _ Archive = (*LocalArchive)(nil)

// NewLocalArchive creates root if needed
func NewLocalArchive(root string) (*LocalArchive, error) {
	if root == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", root, err)
	}
	return &LocalArchive{root: root}, nil
}

func (l *LocalArchive) path(name string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(name))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid archive name %q", name)
	}
	return filepath.Join(l.root, clean), nil
}

func (l *LocalArchive) Store(ctx context.Context, name string, data []byte) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	logrus.Infof("Archived %s to %s", name, l.root)
	return nil
}

func (l *LocalArchive) Retrieve(ctx context.Context, name string) ([]byte, error) {
	p, err := l.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// List returns slash-separated names under prefix, sorted
func (l *LocalArchive) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

func (l *LocalArchive) Delete(ctx context.Context, name string) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}
