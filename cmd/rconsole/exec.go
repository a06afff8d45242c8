package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rconsole-project/rconsole/internal/rcon"
)

var execCmd = &cobra.Command{
	Use:   "exec <command>...",
	Short: "Run one command and print its reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	client, err := rcon.Dial(sessionOptions(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Disconnect()

	ctx := cmd.Context()
	if err := client.Authenticate(ctx, ""); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	reply, err := client.Execute(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	fmt.Print(reply)
	if !strings.HasSuffix(reply, "\n") {
		fmt.Println()
	}
	return nil
}
