package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Cyclone1070/aicoder/internal/payload"
	"github.com/Cyclone1070/aicoder/internal/provider"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// payloadFlags control how a parsed project is applied.
type payloadFlags struct {
	dryRun   bool
	hooks    bool
	noRepair bool
}

func (f *payloadFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the normalised payload instead of writing files")
	cmd.Flags().BoolVar(&f.hooks, "hooks", false, "run postInstall and start after writing")
}

func newPayloadCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Generate or apply multi-file project payloads",
	}

	applyFlags := &payloadFlags{}
	apply := &cobra.Command{
		Use:   "apply [file]",
		Short: "Parse a model reply (file or stdin) and write the project into the workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, flags, cmd.OutOrStdout(), appOptions{})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			project, err := payload.NewDispatcher().Parse(raw)
			if err != nil {
				if applyFlags.noRepair {
					err = &payload.UnparsableError{Raw: raw, Cause: err}
				} else {
					project, err = a.repair(ctx, raw)
				}
			}
			if err != nil {
				return fail(a, err)
			}
			return a.applyProject(ctx, project, applyFlags)
		},
	}
	applyFlags.bind(apply)
	apply.Flags().BoolVar(&applyFlags.noRepair, "no-repair", false, "fail instead of asking the model to repair an unparsable reply")

	genFlags := &payloadFlags{}
	generate := &cobra.Command{
		Use:   "generate <request>",
		Short: "Ask the model for a project payload and write it into the workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, cmd.OutOrStdout(), appOptions{Provider: true, Retrieval: true})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			request := strings.Join(args, " ")
			prompt := request
			if budgeted := a.cm.GetOptimizedContext(ctx, request); strings.TrimSpace(budgeted) != "" {
				prompt = budgeted + "\n\nRequest:\n" + request
			}

			resp, err := a.provider.Generate(ctx, models.UserText(payload.WireFormatInstructions, prompt))
			if err != nil {
				return fail(a, err)
			}

			project, err := payload.NewRepairer(a.provider, nil, a.logger.Named("payload")).ParseWithRepair(ctx, resp.Message.Content)
			if err != nil {
				return fail(a, err)
			}
			return a.applyProject(ctx, project, genFlags)
		},
	}
	genFlags.bind(generate)

	cmd.AddCommand(apply, generate)
	return cmd
}

// repair connects the configured provider and runs the repair round trip.
func (a *app) repair(ctx context.Context, raw string) (*payload.GeneratedProject, error) {
	p, err := provider.New(ctx, a.cfg.Provider, nil, a.logger.Named("provider"))
	if err != nil {
		return nil, fmt.Errorf("%w (repair needs a provider; pass --no-repair to skip)", err)
	}
	return payload.NewRepairer(p, nil, a.logger.Named("payload")).ParseWithRepair(ctx, raw)
}

// applyProject writes project into the workspace and optionally runs its hooks.
func (a *app) applyProject(ctx context.Context, project *payload.GeneratedProject, f *payloadFlags) error {
	project = payload.Normalize(project)

	if f.dryRun {
		out, err := payload.Format(project)
		if err != nil {
			return fail(a, err)
		}
		a.render.Printf("%s\n", out)
		return nil
	}

	report, err := payload.NewWriter(a.tools.FS, a.tools.Guard, a.logger.Named("payload")).Write(ctx, project)
	if err != nil {
		return fail(a, err)
	}
	a.render.Printf("%s\n", a.render.Success(fmt.Sprintf("%d created, %d updated", report.Created, report.Updated)))

	if !f.hooks {
		return nil
	}
	for _, h := range payload.NewRunner(a.tools.Registry, a.logger.Named("hooks")).RunHooks(ctx, project) {
		line := fmt.Sprintf("%s: %s", h.Name, h.Command)
		if !h.Result.OK {
			a.render.Fail(line + ": " + h.Result.Error)
			return fmt.Errorf("%w: %s", errToolFailed, h.Name)
		}
		a.render.ProgressLine(line)
		if out := strings.TrimSpace(h.Result.Output); out != "" {
			a.render.Printf("%s\n", out)
		}
		a.logger.Debug("hook finished", zap.String("hook", h.Name))
	}
	return nil
}

// readInput returns the content of the named file, or stdin when no file or "-" is given.
func readInput(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	return string(data), nil
}
