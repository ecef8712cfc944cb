// Package gitops records output changes in the workspace's git repository.
package gitops

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotRepo is returned when the directory is not inside a work tree.
var ErrNotRepo = errors.New("not a git repository")

// Init initializes a new git repository at dir.
func Init(dir string) error {
	if out, err := git(dir, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %s: %w", out, err)
	}
	return nil
}

// IsRepo reports whether dir is inside a git work tree.
func IsRepo(dir string) bool {
	out, err := git(dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// Commit stages paths (relative to dir or absolute) and commits them with
// the given author. It returns the short hash, or "" when nothing changed.
func Commit(dir, message, author string, paths ...string) (string, error) {
	if !IsRepo(dir) {
		return "", fmt.Errorf("%s: %w", dir, ErrNotRepo)
	}

	args := append([]string{"add", "--"}, paths...)
	if out, err := git(dir, args...); err != nil {
		return "", fmt.Errorf("git add: %s: %w", out, err)
	}

	// diff --cached --quiet exits 1 when something is staged.
	if _, err := git(dir, "diff", "--cached", "--quiet", "--"); err == nil {
		return "", nil
	}

	name, email := splitAuthor(author)
	commit := []string{"-c", "user.name=" + name, "-c", "user.email=" + email, "commit", "--quiet", "-m", message, "--author", author}
	if out, err := git(dir, commit...); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", out, err)
	}

	out, err := git(dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// splitAuthor splits "Name <email>".
func splitAuthor(author string) (string, string) {
	name, email, _ := strings.Cut(author, "<")
	return strings.TrimSpace(name), strings.TrimSuffix(strings.TrimSpace(email), ">")
}

func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
