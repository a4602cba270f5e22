package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"commitbet/cmd"
	"commitbet/config"
	"commitbet/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 {
		if err := runSubcommand(os.Args[1], os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx); err != nil {
		log.WithError(err).Fatal("Application error")
	}
}

func runSubcommand(name string, args []string) error {
	switch name {
	case "migrate":
		return handleMigrationCommand(args)
	case "commitment":
		return cmd.PrintCommitment(os.Stdout, args)
	case "markets":
		return cmd.ListMarkets(context.Background(), os.Stdout, args)
	default:
		return fmt.Errorf("unknown command %q (expected migrate, commitment or markets)", name)
	}
}

func handleMigrationCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: commitbet migrate [up|down|status] [args...]")
	}

	databaseURL := config.Get().GetDatabaseURL()

	switch args[0] {
	case "up":
		return database.MigrateUp(databaseURL)
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(databaseURL, steps)
	case "status":
		return database.MigrateStatus(databaseURL)
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}
