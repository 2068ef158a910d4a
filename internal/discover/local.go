// Package discover scans the project's assets folder for files the
// reconciler should track. A file is a candidate when its filename carries
// version tokens or when the asset index already marks it as tracked.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/plugrec/plugrec/internal/host"
	"github.com/plugrec/plugrec/internal/output"
	"github.com/plugrec/plugrec/internal/tokens"
)

// DiscoverLocal walks the assets directory under projectRoot and returns
// every regular file as a project-relative, slash-separated path.
//
// Returns an error if the assets directory doesn't exist, is not a directory,
// or is not readable. Unreadable subtrees are logged and skipped.
func DiscoverLocal(projectRoot, assetsDir string) ([]string, error) {
	root := filepath.Join(projectRoot, assetsDir)

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("assets directory does not exist: %s", root)
		}
		return nil, fmt.Errorf("accessing assets directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assets path is not a directory: %s", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			output.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			// Hidden directories hold host bookkeeping, not assets.
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, err)
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking assets directory %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Candidates filters paths down to the files the reconciler tracks: those
// whose filename parses to at least one metadata token, plus those carrying
// the marker tag in the asset index.
func Candidates(db host.TagStore, paths []string) []string {
	var out []string
	for _, path := range paths {
		if len(tokens.ParseFilename(path).Tokens) > 0 {
			out = append(out, path)
			continue
		}
		tags, err := db.Tags(path)
		if err != nil {
			continue
		}
		for _, tag := range tags {
			if tag == tokens.MarkerTag {
				out = append(out, path)
				break
			}
		}
	}
	return out
}
