package kvdb

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// healthFileName is the name of the marker file inside a database directory
// that exists while the database is open. A leftover marker on open means
// the previous session did not shut down cleanly.
const healthFileName = "health"

func markDatabaseUnhealthy(dbPath string) error {
	healthFilePath := filepath.Join(dbPath, healthFileName)

	if err := os.WriteFile(healthFilePath, []byte("unclean\n"), 0660); err != nil {
		return errors.Wrapf(err, "unable to write database health file (%s)", healthFilePath)
	}

	return nil
}

func markDatabaseHealthy(dbPath string) error {
	healthFilePath := filepath.Join(dbPath, healthFileName)

	if err := os.Remove(healthFilePath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "unable to remove database health file (%s)", healthFilePath)
	}

	return nil
}

func isDatabaseUnhealthy(dbPath string) (bool, error) {
	healthFilePath := filepath.Join(dbPath, healthFileName)

	_, err := os.Stat(healthFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "unable to check database health file (%s)", healthFilePath)
	}

	return true, nil
}
