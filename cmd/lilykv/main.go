// lilykv runs a key-value server speaking the Redis serialization protocol.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"github.com/marcybelardo/lilykv/config"
	"github.com/marcybelardo/lilykv/server"
	"github.com/marcybelardo/lilykv/store/mstore"
	"github.com/marcybelardo/lilykv/store/snapshot"

	log "github.com/marcybelardo/lilykv/logger"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath  string
		addr        string
		logLevel    string
		snapPath    string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("lilykv", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	flagSet.StringVar(&addr, "addr", "", "listen address, overrides the config")
	flagSet.StringVar(&logLevel, "log-level", "", "log level, overrides the config")
	flagSet.StringVar(&snapPath, "snapshot", "", "snapshot file, overrides the config")
	flagSet.BoolVar(&showVersion, "version", false, "print the version and exit")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("lilykv", version)
		return nil
	}
	if flagSet.NArg() > 0 {
		return errors.Newf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg, err := loadConfig(configPath, flagSet, addr, logLevel, snapPath)
	if err != nil {
		return err
	}

	if err := log.Init("lilykv", cfg.LogLevel); err != nil {
		return err
	}

	st := mstore.New(cfg.Buckets, cfg.PurgeInterval)
	defer st.Close()

	if cfg.SnapshotPath != "" {
		entries, err := snapshot.LoadFile(cfg.SnapshotPath, cfg.Decoder())
		if err != nil {
			return errors.Wrap(err, "restore snapshot")
		}
		st.Restore(entries)
		log.Info("restored %d keys from %s", len(entries), cfg.SnapshotPath)
	}

	s, err := server.Run(cfg, st)
	if err != nil {
		return err
	}
	log.Info("listening on %s", s.Addr())

	<-s.Done()
	return nil
}

func loadConfig(path string, flagSet *pflag.FlagSet, addr, logLevel, snapPath string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	if flagSet.Changed("addr") {
		cfg.Addr = addr
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flagSet.Changed("snapshot") {
		cfg.SnapshotPath = snapPath
	}

	return cfg, cfg.Validate()
}
