package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/gohornet/go-kvdb/pkg/client"
	"github.com/gohornet/go-kvdb/pkg/kvdb"
)

var (
	databasePath    = flag.StringP("database", "d", "", "path to the database directory")
	engineName      = flag.StringP("engine", "e", string(kvdb.EngineRocksDB), "database engine (rocksdb/pebble/badger/mapdb)")
	createIfMissing = flag.BoolP("create", "c", false, "create the database if it does not exist")
	keepLogFileNum  = flag.Int("keep-log-file-num", kvdb.DefaultKeepLogFileNum, "number of write-ahead-log segments to retain")
	syncWrites      = flag.Bool("sync", false, "sync every write to disk")
	ignoreHealth    = flag.Bool("ignore-health", false, "open the database even after an unclean shutdown")
	debug           = flag.Bool("debug", false, "enable debug log output")
)

func printUsage() {
	fmt.Fprintf(os.Stderr, `usage: %s [FLAGS] COMMAND [ARGS]

Commands:
  get <key>          print the value stored under key
  set <key> <value>  store value under key
  del <key>          remove key
  keys [prefix]      list all keys, optionally restricted to a prefix
  size               print the on-disk size of the database
  destroy            remove the database directory

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) (err error) {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("no command given")
	}

	if *databasePath == "" {
		return fmt.Errorf("no database path given (-d)")
	}

	engine, err := kvdb.EngineFromString(*engineName)
	if err != nil {
		return err
	}

	log := zap.NewNop()
	if *debug {
		log, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
	}

	ctx := context.Background()
	c := client.New(client.WithLogger(log))

	command := args[0]

	if command == "destroy" {
		if _, err := c.Destroy(*databasePath).Await(ctx); err != nil {
			return err
		}
		fmt.Printf("destroyed %s\n", *databasePath)
		return nil
	}

	handle, err := c.Connect(*databasePath, kvdb.Options{
		CreateIfMissing: *createIfMissing,
		KeepLogFileNum:  *keepLogFileNum,
		Engine:          engine,
		SyncWrites:      *syncWrites,
		IgnoreHealth:    *ignoreHealth,
	}).Await(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if _, closeErr := c.Close(handle).Await(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	switch command {
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		value, err := c.GetItem(handle, args[1]).Await(ctx)
		if err != nil {
			return err
		}
		if value == nil {
			return fmt.Errorf("key %q not found", args[1])
		}
		fmt.Println(*value)

	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		if _, err := c.SetItem(handle, args[1], args[2]).Await(ctx); err != nil {
			return err
		}

	case "del":
		if len(args) != 2 {
			return fmt.Errorf("usage: del <key>")
		}
		if _, err := c.RemoveItem(handle, args[1]).Await(ctx); err != nil {
			return err
		}

	case "keys":
		var prefix []string
		if len(args) > 1 {
			prefix = append(prefix, args[1])
		}
		keys, err := c.GetKeys(handle, prefix...).Await(ctx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Println(key)
		}

	case "size":
		size, err := c.Size(handle).Await(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d bytes)\n", humanize.Bytes(uint64(size)), size)

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}

	return nil
}
