package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one file per checkpoint in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the checkpoints.
func (f *FileStore) Dir() string { return f.dir }

// Save writes the blob to a temp file and renames it into place so readers
// never see a partial checkpoint.
func (f *FileStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp, err := normalize(cp)
	if err != nil {
		return err
	}
	path := filepath.Join(f.dir, cp.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, cp.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

func (f *FileStore) Load(ctx context.Context, name string) (Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, err
	}
	tag, episode, wins, err := ParseName(name)
	if err != nil {
		return Checkpoint{}, err
	}
	path := filepath.Join(f.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to stat checkpoint: %w", err)
	}
	return Checkpoint{
		Name:      name,
		Tag:       tag,
		Episode:   episode,
		Wins:      wins,
		Data:      data,
		CreatedAt: info.ModTime().UTC(),
	}, nil
}

// List skips files that do not look like checkpoints.
func (f *FileStore) List(ctx context.Context) ([]Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	var out []Checkpoint
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), nameSuffix) {
			continue
		}
		tag, episode, wins, err := ParseName(e.Name())
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
		}
		out = append(out, Checkpoint{
			Name:      e.Name(),
			Tag:       tag,
			Episode:   episode,
			Wins:      wins,
			CreatedAt: info.ModTime().UTC(),
		})
	}
	sortCheckpoints(out)
	return out, nil
}
