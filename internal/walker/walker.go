// Package walker enumerates the files of a project tree, applying skip
// patterns, a size cutoff and optionally the root .gitignore, and reads each
// remaining file into a FileEntry.
package walker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/dusk-indust/archscan/internal/graph"
)

// ErrRootUnreadable is returned when the project root cannot be enumerated.
var ErrRootUnreadable = errors.New("walker: project root unreadable")

// DefaultMaxFileSize is the size cutoff used when Options.MaxFileSize is 0.
const DefaultMaxFileSize = 1 << 20

// FileEntry is one discovered file with its content.
type FileEntry struct {
	Path         string // project-relative, forward-slash
	AbsolutePath string
	Language     graph.Language
	SizeBytes    int64
	LineCount    int
	ContentHash  string // hex SHA-256 of the raw bytes
	Content      []byte
}

// Options controls a walk.
type Options struct {
	// Skip holds glob patterns ("*" one segment, "**" any depth) matched
	// against project-relative paths. Directories are tested with and
	// without a trailing slash; files also by base name.
	Skip             []string
	MaxFileSize      int64
	RespectGitignore bool
	Logger           *slog.Logger
}

// Walk visits root recursively and returns the entries of every file that
// survives the filters, in lexical path order. Unreadable or oversized
// files are logged and skipped; only a root that cannot be enumerated is an
// error.
func Walk(ctx context.Context, root string, opts Options) ([]FileEntry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, root)
	}

	m := matcher{patterns: opts.Skip}
	if opts.RespectGitignore {
		m.gitignore = loadGitignore(absRoot, logger)
	}

	var entries []FileEntry
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if p == absRoot {
				return fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, walkErr)
			}
			logger.Warn("walker: skip unreadable entry", "path", p, "err", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == absRoot {
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if m.skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			logger.Debug("walker: skip non-regular file", "path", rel)
			return nil
		}
		if m.skipFile(rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			logger.Warn("walker: skip unreadable file", "path", rel, "err", err)
			return nil
		}
		if fi.Size() > maxSize {
			logger.Debug("walker: skip oversized file", "path", rel, "size", fi.Size(), "max", maxSize)
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			logger.Warn("walker: skip unreadable file", "path", rel, "err", err)
			return nil
		}
		entries = append(entries, NewEntry(rel, p, content))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// NewEntry builds the entry for a file from its content.
func NewEntry(rel, abs string, content []byte) FileEntry {
	return FileEntry{
		Path:         rel,
		AbsolutePath: abs,
		Language:     graph.DetectLanguage(rel),
		SizeBytes:    int64(len(content)),
		LineCount:    CountLines(content),
		ContentHash:  HashContent(content),
		Content:      content,
	}
}

// HashContent returns the hex SHA-256 of content. No newline
// normalisation is applied, so the hash changes with line endings.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CountLines splits on "\n": empty content has 0 lines, otherwise the
// count is the number of terminators plus one.
func CountLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	return bytes.Count(content, []byte{'\n'}) + 1
}

type matcher struct {
	patterns  []string
	gitignore *ignore.GitIgnore
}

func (m matcher) match(candidates ...string) bool {
	for _, pat := range m.patterns {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(pat, c); ok {
				return true
			}
		}
	}
	return false
}

func (m matcher) skipDir(rel string) bool {
	if m.match(rel+"/", rel) {
		return true
	}
	return m.gitignore != nil && m.gitignore.MatchesPath(rel+"/")
}

func (m matcher) skipFile(rel string) bool {
	if m.match(rel, path.Base(rel)) {
		return true
	}
	return m.gitignore != nil && m.gitignore.MatchesPath(rel)
}

func loadGitignore(root string, logger *slog.Logger) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("walker: ignore unreadable .gitignore", "err", err)
		}
		return nil
	}
	return gi
}
