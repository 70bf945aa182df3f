// Package storage persists policy network checkpoints by name.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the requested checkpoint does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidName indicates a checkpoint name that does not follow the
	// <tag>_<episode>_<wins>.bin convention.
	ErrInvalidName = errors.New("invalid checkpoint name")
)

const nameSuffix = ".bin"

// Checkpoint is one saved policy network snapshot.
type Checkpoint struct {
	Name      string    `json:"name"`
	Tag       string    `json:"tag"`
	Episode   int       `json:"episode"`
	Wins      int       `json:"wins"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckpointStore captures the persistence operations the trainer relies on.
type CheckpointStore interface {
	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, name string) (Checkpoint, error)
	// List returns checkpoint metadata, oldest first. Data is not populated.
	List(ctx context.Context) ([]Checkpoint, error)
}

// CheckpointName builds the canonical name for a snapshot taken at episode
// with wins recent-window wins.
func CheckpointName(tag string, episode, wins int) string {
	return fmt.Sprintf("%s_%d_%d%s", tag, episode, wins, nameSuffix)
}

// ParseName splits a checkpoint name into its tag, episode and wins.
func ParseName(name string) (tag string, episode, wins int, err error) {
	base, ok := strings.CutSuffix(name, nameSuffix)
	if !ok || strings.ContainsAny(base, `/\`) {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	n := len(parts)
	if episode, err = strconv.Atoi(parts[n-2]); err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if wins, err = strconv.Atoi(parts[n-1]); err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return strings.Join(parts[:n-2], "_"), episode, wins, nil
}

// normalize fills the name from the tag, or the tag from the name.
func normalize(cp Checkpoint) (Checkpoint, error) {
	if cp.Name == "" {
		cp.Name = CheckpointName(cp.Tag, cp.Episode, cp.Wins)
	}
	tag, episode, wins, err := ParseName(cp.Name)
	if err != nil {
		return Checkpoint{}, err
	}
	cp.Tag, cp.Episode, cp.Wins = tag, episode, wins
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	return cp, nil
}
