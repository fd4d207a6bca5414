package kvdb

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DatabaseExists checks if the database directory exists and is not empty.
func DatabaseExists(dbPath string) (bool, error) {

	dirExists, err := pathExists(dbPath)
	if err != nil {
		return false, errors.Wrapf(err, "unable to check database path (%s)", dbPath)
	}
	if !dirExists {
		return false, nil
	}

	// directory exists, but maybe the database doesn't exist.
	// check if the directory is empty (needed for example in docker environments)
	dirEmpty, err := directoryEmpty(dbPath)
	if err != nil {
		return false, errors.Wrapf(err, "unable to check database path (%s)", dbPath)
	}

	return !dirEmpty, nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func directoryEmpty(dirPath string) (bool, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return false, err
	}

	return len(entries) == 0, nil
}

// FolderSize returns the accumulated size of all files in a folder.
func FolderSize(target string) (int64, error) {

	var size int64

	err := filepath.Walk(target, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			size += info.Size()
		}

		return err
	})

	return size, err
}
