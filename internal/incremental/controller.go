// Package incremental decides which discovered files an indexing pass has
// to reprocess: all of them, the paths changed since the last indexed
// commit, or the files whose content hash differs from the stored one.
package incremental

import (
	"context"
	"log/slog"
	"slices"

	"github.com/dusk-indust/archscan/internal/walker"
)

// Mode records which rule produced a Selection.
type Mode string

const (
	ModeFull Mode = "full"
	ModeVCS  Mode = "vcs"
	ModeHash Mode = "hash"
)

// Request is the input of one selection.
type Request struct {
	Root       string
	Full       bool
	LastCommit string             // "" when the project was never indexed at a revision
	Discovered []walker.FileEntry // everything the walker returned
	Persisted  map[string]string  // path -> content hash of stored files
}

// Selection is the outcome of one selection.
type Selection struct {
	Mode     Mode
	Selected []walker.FileEntry
	// Removed lists stored paths that were not discovered again.
	Removed []string
	// HeadCommit is the current revision, "" when it could not be read.
	HeadCommit string
}

// Controller implements the per-pass selection policy.
type Controller struct {
	vcs    VCS
	logger *slog.Logger
}

// NewController returns a Controller. A nil vcs disables revision diffs.
func NewController(vcs VCS, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{vcs: vcs, logger: logger}
}

// Select applies, in order: a requested full run selects everything; a
// known last commit plus a readable head commit selects the changed paths
// when the diff is non-empty; otherwise files are selected by content hash.
// Files that were never stored are always selected. VCS failures are logged
// at debug level and fall through to hash comparison.
func (c *Controller) Select(ctx context.Context, req Request) Selection {
	sel := Selection{Removed: removedPaths(req.Discovered, req.Persisted)}
	if c.vcs != nil {
		head, err := c.vcs.HeadCommit(ctx, req.Root)
		if err != nil {
			c.logger.Debug("incremental: no head commit", "root", req.Root, "err", err)
		} else {
			sel.HeadCommit = head
		}
	}

	if req.Full {
		sel.Mode = ModeFull
		sel.Selected = slices.Clone(req.Discovered)
		return sel
	}

	if req.LastCommit != "" && sel.HeadCommit != "" {
		changed, err := c.vcs.ChangedPaths(ctx, req.Root, req.LastCommit, sel.HeadCommit)
		switch {
		case err != nil:
			c.logger.Debug("incremental: diff failed, comparing hashes", "root", req.Root, "err", err)
		case len(changed) == 0:
			c.logger.Debug("incremental: empty diff, comparing hashes", "root", req.Root)
		default:
			changedSet := make(map[string]bool, len(changed))
			for _, p := range changed {
				changedSet[p] = true
			}
			sel.Mode = ModeVCS
			for _, f := range req.Discovered {
				_, stored := req.Persisted[f.Path]
				if changedSet[f.Path] || !stored {
					sel.Selected = append(sel.Selected, f)
				}
			}
			return sel
		}
	}

	sel.Mode = ModeHash
	for _, f := range req.Discovered {
		if hash, ok := req.Persisted[f.Path]; !ok || hash != f.ContentHash {
			sel.Selected = append(sel.Selected, f)
		}
	}
	return sel
}

// removedPaths returns the sorted stored paths absent from discovered.
func removedPaths(discovered []walker.FileEntry, persisted map[string]string) []string {
	present := make(map[string]bool, len(discovered))
	for _, f := range discovered {
		present[f.Path] = true
	}
	var removed []string
	for p := range persisted {
		if !present[p] {
			removed = append(removed, p)
		}
	}
	slices.Sort(removed)
	return removed
}
