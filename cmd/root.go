// Package cmd wires the demo's cobra commands. It is a collaborator of the
// core container/event/lifecycle packages, never the other way around.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"corium/internal/config"
	"corium/internal/container"
	"corium/internal/ids"
	"corium/internal/lifecycle"
	"corium/pkg/logging"
)

var (
	configPath    string
	settleTimeout time.Duration
)

// rootCmd is the entry point when the demo binary is invoked without
// subcommands: it installs a small set of interdependent services, lets
// the dispatcher run until they settle, and prints the result.
var rootCmd = &cobra.Command{
	Use:   "corium-demo",
	Short: "Install a couple of interdependent demo services and print their settled states",
	RunE: func(c *cobra.Command, args []string) error {
		return runDemo(c.Context(), configPath, settleTimeout)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "optional bootstrap config file")
	rootCmd.Flags().DurationVar(&settleTimeout, "timeout", 5*time.Second, "how long to wait for services to settle")
}

// Execute runs the root command, exiting the process on failure. It is
// called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logging.Error("cmd", err, "command failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo(ctx context.Context, configPath string, settleTimeout time.Duration) error {
	boot := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		boot = loaded
	}

	c := container.NewWithBootstrap(nil, boot)

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " waiting for demo services to settle"
	s.Start()

	serviceIDs, err := installDemoServices(c)
	if err != nil {
		s.Stop()
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	go func() {
		_ = c.Run(runCtx)
	}()

	waitForSettled(runCtx, c, serviceIDs)
	s.Stop()

	printStatus(c, serviceIDs)
	return c.Shutdown(context.Background())
}

func waitForSettled(ctx context.Context, c *container.Container, serviceIDs []ids.ServiceID) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if allSettled(c, serviceIDs) {
				return
			}
		}
	}
}

func allSettled(c *container.Container, serviceIDs []ids.ServiceID) bool {
	for _, id := range serviceIDs {
		switch c.State(id) {
		case lifecycle.Active, lifecycle.Unknown, lifecycle.Uninstalled:
			continue
		default:
			return false
		}
	}
	return true
}

func printStatus(c *container.Container, serviceIDs []ids.ServiceID) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Service", "State"})
	for _, id := range serviceIDs {
		t.AppendRow(table.Row{id, c.State(id).String()})
	}
	t.Render()
}
