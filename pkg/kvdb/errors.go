package kvdb

import (
	"github.com/pkg/errors"
)

var (
	// ErrDatabaseNotFound is returned when the database directory does not exist
	// and CreateIfMissing is not set.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrDatabaseLocked is returned when the database directory is already
	// exclusively opened by another instance.
	ErrDatabaseLocked = errors.New("database locked by another instance")

	// ErrDatabaseCorrupted is returned when the on-disk data fails engine
	// validation or the previous session did not shut down cleanly.
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// ErrEngineMismatch is returned when the database directory was created
	// with a different engine than the one requested.
	ErrEngineMismatch = errors.New("database engine does not match the configuration")

	// ErrInvalidOption is returned when a recognized option carries an
	// out-of-domain value. It is detected before any engine call.
	ErrInvalidOption = errors.New("invalid option")

	// ErrDatabaseClosed is returned for any operation on a closed database.
	ErrDatabaseClosed = errors.New("database closed")

	// ErrKeyNotFound is returned by Store.Get when the key is absent.
	// Absence is a regular outcome, not a failure of the engine.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNotUTF8 is returned when stored bytes are read through the text
	// interface but are not valid UTF-8.
	ErrNotUTF8 = errors.New("stored bytes are not valid UTF-8")
)
