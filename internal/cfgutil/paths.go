// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileExists reports whether path names an existing file or directory.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil

	case errors.Is(err, fs.ErrNotExist):
		return false, nil

	default:
		return false, err
	}
}

// CleanAndExpandPath replaces a leading ~ with the home directory, expands
// $VAR references and cleans the result.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(path, "~"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + rest
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
