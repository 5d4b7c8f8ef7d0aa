// Package main provides the aicoder command-line interface. It wires the
// context manager, tool registry, providers and workflow into cobra commands.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/Cyclone1070/aicoder/internal/payload"
	"github.com/spf13/cobra"
)

var version = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	verbose    bool
	workspace  string
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "aicoder",
		Short:         "Context-aware coding assistant for the current workspace",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging on stderr")
	root.PersistentFlags().StringVarP(&flags.workspace, "workspace", "w", "", "workspace root (default: current directory)")
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default: ~/.config/aicoder/config.json)")

	root.AddCommand(
		newAskCmd(flags),
		newPromptCmd(flags),
		newGoalCmd(flags),
		newToolCmd(flags),
		newMCPCmd(flags),
		newSessionCmd(flags),
		newPayloadCmd(flags),
	)
	return root
}

// fail reports err to the user and returns it so cobra exits non-zero. An
// unparsable payload also prints the model's raw reply unchanged.
func fail(a *app, err error) error {
	a.render.Fail(userMessage(err))
	var unparsable *payload.UnparsableError
	if errors.As(err, &unparsable) && unparsable.Raw != "" {
		a.render.Printf("%s\n%s\n", a.render.Header("Raw model reply:"), unparsable.Raw)
	}
	return err
}
