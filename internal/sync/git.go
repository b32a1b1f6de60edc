package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// GitOptions configures a GitDestination.
type GitOptions struct {
	// Repo is the path to an existing local clone.
	Repo string
	// File is the snapshot path inside the repo.
	File   string
	Branch string
	// Remote defaults to "origin".
	Remote string
	// AuthorName and AuthorEmail sign the snapshot commits. They default to
	// "cadence" and "cadence@localhost".
	AuthorName  string
	AuthorEmail string
}

// gitRunner runs one git subcommand in dir.
type gitRunner func(ctx context.Context, dir string, args ...string) error

// GitDestination commits each changed snapshot to a file in a local clone
// and pushes it.
type GitDestination struct {
	opts GitOptions
	run  gitRunner
}

// NewGitDestination creates a git destination.
func NewGitDestination(opts GitOptions) *GitDestination {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.AuthorName == "" {
		opts.AuthorName = "cadence"
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = "cadence@localhost"
	}
	return &GitDestination{opts: opts, run: execGit}
}

func (d *GitDestination) Name() string {
	return fmt.Sprintf("git:%s@%s/%s", filepath.Join(d.opts.Repo, d.opts.File), d.opts.Remote, d.opts.Branch)
}

// Write replaces the snapshot file, then commits and pushes. A snapshot
// identical to the checked-out file is not committed.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	o := d.opts
	if err := d.run(ctx, o.Repo, "checkout", o.Branch); err != nil {
		return fmt.Errorf("git checkout %s: %w", o.Branch, err)
	}
	// The remote may not have the branch yet.
	_ = d.run(ctx, o.Repo, "pull", "--ff-only", o.Remote, o.Branch)

	path := filepath.Join(o.Repo, o.File)
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, data) {
		return nil
	}
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	if err := d.run(ctx, o.Repo, "add", o.File); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if err := d.run(ctx, o.Repo, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}
	if err := d.run(ctx, o.Repo,
		"-c", "user.name="+o.AuthorName,
		"-c", "user.email="+o.AuthorEmail,
		"commit", "-m", commitMessage(data)); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	if err := d.run(ctx, o.Repo, "push", o.Remote, o.Branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// commitMessage summarizes a snapshot from its header line.
func commitMessage(data []byte) string {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	var h header
	if err := json.Unmarshal(line, &h); err != nil || h.Type != "header" {
		return "sync: update cadence snapshot"
	}
	return fmt.Sprintf("sync: %d occurrences, %d registrations", h.OccurrenceCount, h.RegistrationCount)
}

func execGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
