// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"
)

const (
	authorName  = "Counsel"
	authorEmail = "memory@counsel.local"
	usersDir    = "users"
)

// Archive is a git-backed store of exported assistant profiles. Each
// export lands as a timestamped snapshot file plus a rolling latest.json,
// committed so the full history of a user's profile stays recoverable.
type Archive struct {
	Path string
	repo *git.Repository
}

// Snapshot describes one archived profile export
type Snapshot struct {
	ID        string
	UserID    string
	Message   string
	CreatedAt time.Time
}

// Open opens the archive at path, initializing a fresh repository if
// none exists yet.
func Open(path string) (*Archive, error) {
	repo, err := git.PlainOpen(path)
	if err == git.ErrRepositoryNotExists {
		if mkErr := os.MkdirAll(path, 0755); mkErr != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", mkErr)
		}
		repo, err = git.PlainInit(path, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive repository: %w", err)
	}

	return &Archive{
		Path: path,
		repo: repo,
	}, nil
}

// Store writes a profile export for a user and commits it. It returns
// the snapshot ID used in the file name.
func (a *Archive) Store(userID string, payload []byte) (string, error) {
	id := uuid.New().String()

	userDir := filepath.Join(a.Path, usersDir, userID)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create user directory: %w", err)
	}

	snapshotPath := filepath.Join(userDir, id+".json")
	if err := os.WriteFile(snapshotPath, payload, 0600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	latestPath := filepath.Join(userDir, "latest.json")
	if err := os.WriteFile(latestPath, payload, 0600); err != nil {
		return "", fmt.Errorf("failed to write latest snapshot: %w", err)
	}

	message := fmt.Sprintf("export: Profile snapshot %s for user '%s'", id, userID)
	if err := a.commit([]string{snapshotPath, latestPath}, message); err != nil {
		return "", err
	}

	return id, nil
}

// Latest returns the most recent export for a user.
func (a *Archive) Latest(userID string) ([]byte, error) {
	latestPath := filepath.Join(a.Path, usersDir, userID, "latest.json")
	payload, err := os.ReadFile(latestPath)
	if err != nil {
		return nil, fmt.Errorf("no archived profile for user '%s': %w", userID, err)
	}
	return payload, nil
}

// Load returns a specific snapshot by ID.
func (a *Archive) Load(userID, snapshotID string) ([]byte, error) {
	snapshotPath := filepath.Join(a.Path, usersDir, userID, snapshotID+".json")
	payload, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot '%s' not found for user '%s': %w", snapshotID, userID, err)
	}
	return payload, nil
}

// History returns up to maxCount snapshots for a user, newest first.
func (a *Archive) History(userID string, maxCount int) ([]Snapshot, error) {
	ref, err := a.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	commitIter, err := a.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}
	defer commitIter.Close()

	marker := fmt.Sprintf("for user '%s'", userID)
	var snapshots []Snapshot
	err = commitIter.ForEach(func(c *object.Commit) error {
		if maxCount > 0 && len(snapshots) >= maxCount {
			return fmt.Errorf("stop iteration")
		}
		var id string
		if n, _ := fmt.Sscanf(c.Message, "export: Profile snapshot %s", &id); n != 1 {
			return nil
		}
		if !strings.Contains(c.Message, marker) {
			return nil
		}
		snapshots = append(snapshots, Snapshot{
			ID:        id,
			UserID:    userID,
			Message:   c.Message,
			CreatedAt: c.Author.When,
		})
		return nil
	})
	if err != nil && err.Error() != "stop iteration" {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}

	return snapshots, nil
}

// commit stages the given files and records a commit.
func (a *Archive) commit(files []string, message string) error {
	worktree, err := a.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	for _, file := range files {
		relPath, err := filepath.Rel(a.Path, file)
		if err != nil {
			relPath = file
		}
		if _, err := worktree.Add(relPath); err != nil {
			return fmt.Errorf("failed to add file %s: %w", relPath, err)
		}
	}

	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}
