package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rconsole-project/rconsole/internal/console"
	"github.com/rconsole-project/rconsole/internal/events"
	"github.com/rconsole-project/rconsole/internal/history"
	"github.com/rconsole-project/rconsole/internal/rcon"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open an interactive console on the server",
	Args:  cobra.NoArgs,
	RunE:  runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	bus := events.NewBus()
	defer bus.Stop()

	var store *history.Store
	histCfg := cfg.GetApplicationData().History
	if histCfg.Enabled {
		var err error
		store, err = history.NewStore(histCfg.DatabasePath)
		if err != nil {
			log.Warn().Err(err).Msg("history disabled, failed to open store")
		} else {
			defer store.Close()
			store.Attach(bus)
		}
	}

	client, err := rcon.Dial(sessionOptions(), bus)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Disconnect()

	ctx := cmd.Context()
	if err := client.Authenticate(ctx, ""); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	var reader console.HistoryReader
	if store != nil {
		reader = store
	}
	return console.New(client, reader, os.Stdin, os.Stdout).Run(ctx)
}
