package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/packagebuilder-backend/pkg/config"
	"github.com/angelmondragon/packagebuilder-backend/pkg/db"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
	"github.com/angelmondragon/packagebuilder-backend/pkg/migrate"
)

const usage = `usage: migrate -cmd <command> [flags]

commands:
  up        apply every pending migration
  down      roll back the newest migration
  reset     roll back everything
  status    list migrations and when they were applied
  version   move to -version (YYYYMMDDHHMMSS)
  create    write a new SQL migration named -name
  validate  check filenames and goose annotations in -dir
`

func main() {
	cmd := flag.String("cmd", "up", "migration command")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name for create")
	version := flag.String("version", "", "target version for the version command")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	// create and validate only touch files.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("validate %s: %v", *dir, err)
		}
		fmt.Println("migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fail("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd, "dir": *dir})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to bootstrap sql handle", err)
		os.Exit(1)
	}

	var lines []string
	switch *cmd {
	case "up", "down", "reset", "status":
		lines, err = migrate.Run(ctx, sqlDB, *dir, *cmd)
	case "version":
		if *version == "" {
			fail("missing -version for version")
		}
		lines, err = migrate.MigrateToVersion(ctx, sqlDB, *dir, *version)
	default:
		flag.Usage()
		os.Exit(2)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "migrations", len(lines)), "migrate finished")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
