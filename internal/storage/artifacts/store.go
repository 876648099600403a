// Package artifacts keeps recorded audio on local disk.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"moodcheck/internal/domain"
)

// Store writes clips under Dir as {userID}/{unixMillis}-{uuid}.{ext}.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// SaveAudio writes the clip and returns its path relative to the store root.
// Existing files are never overwritten.
func (s *Store) SaveAudio(ctx context.Context, userID string, clip domain.AudioClip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(clip.Data) == 0 {
		return "", errors.New("empty audio clip")
	}
	owner := strings.TrimSpace(userID)
	if owner == "" || strings.ContainsAny(owner, `/\`) || owner == "." || owner == ".." {
		return "", fmt.Errorf("invalid user id %q", userID)
	}

	rel := fmt.Sprintf("%s/%d-%s.%s", owner, s.now().UnixMilli(), uuid.NewString(), clip.Extension())
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if _, err := f.Write(clip.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	return rel, nil
}
