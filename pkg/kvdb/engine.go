package kvdb

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Engine identifies a storage engine backing a database directory.
type Engine string

const (
	EngineUnknown Engine = "unknown"
	EngineRocksDB Engine = "rocksdb"
	EnginePebble  Engine = "pebble"
	EngineBadger  Engine = "badger"
	EngineMapDB   Engine = "mapdb"
)

// engineInfoFileName is the name of the marker file inside a database
// directory that records which engine created it.
const engineInfoFileName = "dbinfo"

type engineInfo struct {
	Engine string `toml:"databaseEngine"`
}

// EngineFromString parses a string and returns an Engine.
// Returns an error if the engine is unknown or not in allowedEngines.
func EngineFromString(engineStr string, allowedEngines ...Engine) (Engine, error) {

	engine := Engine(strings.ToLower(engineStr))

	if len(allowedEngines) > 0 {
		supportedEngines := ""
		for i, allowedEngine := range allowedEngines {
			if i != 0 {
				supportedEngines += "/"
			}
			supportedEngines += string(allowedEngine)

			if engine == allowedEngine {
				return engine, nil
			}
		}

		return EngineUnknown, errors.Errorf("unknown database engine: %s, supported engines: %s", engine, supportedEngines)
	}

	switch engine {
	case EngineRocksDB, EnginePebble, EngineBadger, EngineMapDB:
		return engine, nil
	default:
		return EngineUnknown, errors.Errorf("unknown database engine: %s, supported engines: rocksdb/pebble/badger/mapdb", engine)
	}
}

// CheckEngine verifies that the requested engine matches the one that
// created the database directory. For a new database it stores the engine
// in an info file inside the directory; for an existing one it compares
// the requested engine against the stored one.
func CheckEngine(dbPath string, createIfNotExists bool, dbEngine Engine) (Engine, error) {

	if dbEngine == EngineMapDB {
		// in-memory, no directory and no info file to check
		return EngineMapDB, nil
	}

	dbExists, err := DatabaseExists(dbPath)
	if err != nil {
		return EngineUnknown, err
	}

	if !dbExists && !createIfNotExists {
		return EngineUnknown, errors.Wrapf(ErrDatabaseNotFound, "%s", dbPath)
	}

	infoFilePath := filepath.Join(dbPath, engineInfoFileName)
	_, err = os.Stat(infoFilePath)
	switch {
	case err != nil && !os.IsNotExist(err):
		return EngineUnknown, errors.Wrapf(err, "unable to check database info file (%s)", infoFilePath)

	case err != nil:
		if dbExists {
			// the directory holds data but no info file, so it was not
			// created by this layer and cannot be validated
			return EngineUnknown, errors.Wrapf(ErrDatabaseCorrupted, "database info file not found (%s)", infoFilePath)
		}

		if err := storeEngineInfoFile(infoFilePath, dbEngine); err != nil {
			return EngineUnknown, err
		}

		return dbEngine, nil

	default:
		engineFromFile, err := LoadEngineFromInfoFile(infoFilePath)
		if err != nil {
			return EngineUnknown, err
		}

		if engineFromFile != dbEngine {
			return EngineUnknown, errors.Wrapf(ErrEngineMismatch, "'%s' != '%s'", engineFromFile, dbEngine)
		}

		return engineFromFile, nil
	}
}

// LoadEngineFromInfoFile returns the engine recorded in a database info file.
func LoadEngineFromInfoFile(path string) (Engine, error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return EngineUnknown, errors.Wrap(err, "unable to read database info file")
	}

	var info engineInfo
	if err := toml.Unmarshal(data, &info); err != nil {
		return EngineUnknown, errors.Wrap(err, "unable to parse database info file")
	}

	return EngineFromString(info.Engine)
}

func storeEngineInfoFile(filePath string, engine Engine) error {

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return errors.Wrapf(err, "could not create database dir '%s'", filepath.Dir(filePath))
	}

	data, err := toml.Marshal(engineInfo{Engine: string(engine)})
	if err != nil {
		return errors.Wrap(err, "unable to marshal database info file")
	}

	header := []byte("# auto-generated\n# !!! do not modify this file !!!\n")

	if err := os.WriteFile(filePath, append(header, data...), 0660); err != nil {
		return errors.Wrapf(err, "unable to write database info file (%s)", filePath)
	}

	return nil
}

// newStoreForEngine opens the native engine instance for the given engine
// and wraps it in its adapter.
func newStoreForEngine(engine Engine, path string, opts Options) (Store, error) {
	switch engine {
	case EngineRocksDB:
		return newRocksDBStore(path, opts)
	case EnginePebble:
		return newPebbleStore(path, opts)
	case EngineBadger:
		return newBadgerStore(path, opts)
	case EngineMapDB:
		return newMapDBStore(), nil
	default:
		return nil, errors.Errorf("unknown database engine: %s, supported engines: rocksdb/pebble/badger/mapdb", engine)
	}
}
