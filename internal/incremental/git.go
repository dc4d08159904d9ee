package incremental

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultGitTimeout bounds every git invocation.
const DefaultGitTimeout = 10 * time.Second

// VCS reports revision information for a working tree.
type VCS interface {
	// HeadCommit returns the identifier of the checked-out revision.
	HeadCommit(ctx context.Context, root string) (string, error)
	// ChangedPaths returns the root-relative, forward-slash paths that
	// differ between from and to, plus uncommitted and untracked changes
	// in the working tree.
	ChangedPaths(ctx context.Context, root, from, to string) ([]string, error)
}

// GitVCS implements VCS by shelling out to the git binary.
type GitVCS struct {
	Timeout time.Duration
}

// NewGitVCS returns a GitVCS with the given per-command timeout; zero
// means DefaultGitTimeout.
func NewGitVCS(timeout time.Duration) *GitVCS {
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}
	return &GitVCS{Timeout: timeout}
}

// HeadCommit runs git rev-parse HEAD in root.
func (g *GitVCS) HeadCommit(ctx context.Context, root string) (string, error) {
	out, err := g.run(ctx, root, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ChangedPaths unions the committed diff between from and to with the
// working tree's unstaged, staged and untracked changes. Paths are relative
// to root, and changes outside root are left out.
func (g *GitVCS) ChangedPaths(ctx context.Context, root, from, to string) ([]string, error) {
	commands := [][]string{
		{"diff", "--name-only", "--relative", "-z", from, to},
		{"diff", "--name-only", "--relative", "-z"},
		{"diff", "--name-only", "--relative", "-z", "--cached"},
		{"ls-files", "-z", "--others", "--exclude-standard"},
	}
	seen := make(map[string]bool)
	var paths []string
	for _, args := range commands {
		out, err := g.run(ctx, root, args...)
		if err != nil {
			return nil, err
		}
		for _, p := range splitNUL(out) {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	return paths, nil
}

func (g *GitVCS) run(ctx context.Context, root string, args ...string) ([]byte, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// splitNUL splits NUL-terminated git output into paths.
func splitNUL(out []byte) []string {
	var paths []string
	for _, p := range bytes.Split(out, []byte{0}) {
		if len(p) > 0 {
			paths = append(paths, string(p))
		}
	}
	return paths
}
