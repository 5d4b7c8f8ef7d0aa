package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Cyclone1070/aicoder/internal/mcpserver"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errToolFailed = errors.New("tool call failed")

// conversationFlags control session resume and save for ask and goal.
type conversationFlags struct {
	sessionID string
	fresh     bool
	noSave    bool
}

func (f *conversationFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sessionID, "session", "", "resume this session ID instead of the latest for the workspace")
	cmd.Flags().BoolVar(&f.fresh, "fresh", false, "start a new conversation")
	cmd.Flags().BoolVar(&f.noSave, "no-save", false, "do not persist the conversation")
}

// withConversation restores the session, runs fn and saves the result even
// when fn fails.
func withConversation(ctx context.Context, a *app, f *conversationFlags, fn func() error) error {
	if f.fresh && f.noSave {
		return fn()
	}

	store, err := a.openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	id := f.sessionID
	if !f.fresh {
		if id, err = a.resume(ctx, store, f.sessionID); err != nil {
			return err
		}
	}

	runErr := fn()

	if !f.noSave {
		saved, err := a.persist(context.WithoutCancel(ctx), store, id)
		if err != nil {
			a.logger.Warn("session not saved", zap.Error(err))
		} else {
			a.logger.Debug("session saved", zap.String("id", saved))
		}
	}
	return runErr
}

func newAskCmd(flags *globalFlags) *cobra.Command {
	conv := &conversationFlags{}
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Route a question to the matching agent and print the model's reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, cmd.OutOrStdout(), appOptions{Provider: true, Retrieval: true})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			query := strings.Join(args, " ")
			return withConversation(ctx, a, conv, func() error {
				reply, err := a.workflow.Ask(ctx, query)
				if reply != "" {
					a.render.Reply(reply)
				}
				if err != nil {
					return fail(a, err)
				}
				return nil
			})
		},
	}
	conv.bind(cmd)
	return cmd
}

func newPromptCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <query>",
		Short: "Print the intent and specialised prompt for a query without calling a model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, cmd.OutOrStdout(), appOptions{Retrieval: true})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			res := a.workflow.ExecuteWorkflow(ctx, strings.Join(args, " "))
			a.render.Printf("%s\n\n%s\n", a.render.Header("intent: "+string(res.Intent)), res.Prompt)
			return nil
		},
	}
}

func newGoalCmd(flags *globalFlags) *cobra.Command {
	conv := &conversationFlags{}
	var criteria string
	cmd := &cobra.Command{
		Use:   "goal <goal>",
		Short: "Work autonomously towards a goal using the workspace tools",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, cmd.OutOrStdout(), appOptions{Provider: true, Retrieval: true})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			goal := strings.Join(args, " ")
			return withConversation(ctx, a, conv, func() error {
				res, err := a.workflow.RunGoal(ctx, goal, criteria, a.render.ProgressLine)
				if err != nil {
					return fail(a, err)
				}
				if text := finalReply(res.Messages); text != "" {
					a.render.Reply(text)
				}
				if !res.Done {
					a.render.Fail(fmt.Sprintf("goal not completed (%s)", res.StopReason))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&criteria, "criteria", "", "success criteria for the goal")
	conv.bind(cmd)
	return cmd
}

// finalReply returns the text of the last assistant message.
func finalReply(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleAssistant && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content
		}
	}
	return ""
}

func newToolCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "List or call workspace tools directly",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the tool catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.OutOrStdout(), appOptions{})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			for _, d := range a.tools.Registry.Catalog() {
				a.render.Printf("%-20s %s\n", d.Name, d.Description)
			}
			return nil
		},
	}

	call := &cobra.Command{
		Use:   "call <name> [json-args]",
		Short: "Call a tool with JSON arguments and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 2 {
				raw = args[1]
			}
			toolArgs, err := parseToolArgs(raw)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags, cmd.OutOrStdout(), appOptions{})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			res := a.tools.Registry.Call(cmd.Context(), args[0], toolArgs)
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			a.render.Printf("%s\n", out)
			if !res.OK {
				return fmt.Errorf("%w: %s", errToolFailed, res.Error)
			}
			return nil
		},
	}

	cmd.AddCommand(list, call)
	return cmd
}

// parseToolArgs decodes a JSON object of tool arguments. Empty means none.
func parseToolArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object: %w", err)
	}
	return args, nil
}

func newMCPCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the workspace tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.ErrOrStderr(), appOptions{})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			a.logger.Info("serving MCP on stdio", zap.String("workspace", a.root), zap.Int("tools", a.tools.Registry.Len()))
			return mcpserver.ServeStdio(a.tools.Registry, version, a.logger.Named("mcp"))
		},
	}
}
