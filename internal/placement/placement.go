// Package placement decides where a redacted instance lands in the output
// tree and keeps two instances from ever sharing a directory.
//
// Numbering is derived from the directories present at resolve time, so it
// is not stable if directories are deleted between runs.
package placement

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrExhausted is returned by Create when concurrent writers keep claiming
// the resolved name.
var ErrExhausted = errors.New("could not claim a unique placement directory")

const maxAttempts = 16

// createMu serializes Create within a process. Separate processes sharing an
// output tree are only protected by the Mkdir retry.
var createMu sync.Mutex

var (
	claimsMu sync.Mutex
	claims   = make(map[string]*sync.Mutex)
)

// Resolve returns the destination directory for tomoName inside
// baseDir/typeDir. Existing directories starting with tomoName count as
// collisions:
//
//	none              -> tomoName
//	only tomoName     -> rename it to tomoName_1, return tomoName_2
//	n matches         -> tomoName_<n+1>
func Resolve(baseDir, typeDir, tomoName string) (string, error) {
	parent := filepath.Join(baseDir, typeDir)
	target := filepath.Join(parent, tomoName)

	entries, err := os.ReadDir(parent)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("could not list %s: %w", parent, err)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), tomoName) {
			matches = append(matches, e.Name())
		}
	}

	switch {
	case len(matches) == 0:
		return target, nil
	case len(matches) == 1 && matches[0] == tomoName:
		if err := os.Rename(target, target+"_1"); err != nil {
			return "", fmt.Errorf("could not rename %s: %w", target, err)
		}
	}
	return fmt.Sprintf("%s_%d", target, len(matches)+1), nil
}

// Create resolves and creates the destination directory. If another worker
// creates or renames the same name first, resolution is repeated.
func Create(baseDir, typeDir, tomoName string) (string, error) {
	createMu.Lock()
	defer createMu.Unlock()

	if err := os.MkdirAll(filepath.Join(baseDir, typeDir), 0755); err != nil {
		return "", fmt.Errorf("could not create %s: %w", typeDir, err)
	}

	for i := 0; i < maxAttempts; i++ {
		dir, err := Resolve(baseDir, typeDir, tomoName)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		err = os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("could not create %s: %w", dir, err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrExhausted, tomoName)
}

// Claim creates the destination directory like Create and holds the name
// until release is called. Meanwhile no other Claim for the same name in
// this process can rename the directory to <tomoName>_1, so files can be
// copied into it safely.
func Claim(baseDir, typeDir, tomoName string) (dir string, release func(), err error) {
	key := filepath.Join(baseDir, typeDir, tomoName)
	claimsMu.Lock()
	mu, ok := claims[key]
	if !ok {
		mu = &sync.Mutex{}
		claims[key] = mu
	}
	claimsMu.Unlock()

	mu.Lock()
	dir, err = Create(baseDir, typeDir, tomoName)
	if err != nil {
		mu.Unlock()
		return "", nil, err
	}
	return dir, mu.Unlock, nil
}

// PrepareTree creates the pseudonym directory and its fixed type subdirectories.
func PrepareTree(root, pseudonym string, typeDirs []string) (string, error) {
	base := filepath.Join(root, pseudonym)
	for _, d := range typeDirs {
		if err := os.MkdirAll(filepath.Join(base, d), 0755); err != nil {
			return "", fmt.Errorf("could not create output tree: %w", err)
		}
	}
	return base, nil
}
