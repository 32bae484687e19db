package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
)

// Scan lists the subject folders directly under root, sorted by name. A folder that resolves
// to the output directory is skipped so earlier artifacts are never treated as a subject.
func Scan(root, output string) ([]Subject, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidInput, root)
	}

	outAbs := resolve(output)

	dirents, err := godirwalk.ReadDirents(root, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	sort.Sort(dirents)

	var subjects []Subject
	for _, de := range dirents {
		isDir, err := de.IsDirOrSymlinkToDir()
		if err != nil {
			log.Warnf("seed: cannot stat %s: %s", de.Name(), err)
			continue
		}
		if !isDir {
			continue
		}

		path := filepath.Join(root, de.Name())
		if output != "" && resolve(path) == outAbs {
			log.Debugf("seed: skipping output directory %s", path)
			continue
		}

		subjects = append(subjects, Subject{ID: de.Name(), Path: path})
	}

	return subjects, nil
}

// resolve returns the absolute path with symlinks evaluated when the path exists.
func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}
