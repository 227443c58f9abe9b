package utils

import (
	"os"
	"path/filepath"
	"strings"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// OutputPath replaces the extension of inPath with ext (".hex", ".bin").
func OutputPath(inPath, ext string) string {
	old := filepath.Ext(inPath)
	if old == "" || old == ext {
		return inPath + ext
	}
	return strings.TrimSuffix(inPath, old) + ext
}

// WriteFile creates the parent directory of path as needed.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
