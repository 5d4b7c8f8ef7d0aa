package main

import (
	"encoding/json"
	"fmt"

	"github.com/Cyclone1070/aicoder/internal/contextmgr"
	"github.com/spf13/cobra"
)

func encodeState(s contextmgr.State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode conversation: %w", err)
	}
	return data, nil
}

func decodeState(data []byte, s *contextmgr.State) error {
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("decode conversation: %w", err)
	}
	return nil
}

func newSessionCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect stored conversations",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions of the workspace, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.OutOrStdout(), appOptions{})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			store, err := a.openSessions()
			if err != nil {
				return fail(a, err)
			}
			defer store.Close()

			workspace := a.root
			if all {
				workspace = ""
			}
			sessions, err := store.List(cmd.Context(), workspace)
			if err != nil {
				return fail(a, err)
			}
			if len(sessions) == 0 {
				a.render.Printf("No sessions.\n")
				return nil
			}
			for _, s := range sessions {
				a.render.Printf("%s  %s  %6d bytes  %s\n", s.ID, s.UpdatedAt.Local().Format("2006-01-02 15:04"), s.Bytes, s.Workspace)
			}
			return nil
		},
	}
	list.Flags().BoolVar(&all, "all", false, "list sessions of every workspace")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.OutOrStdout(), appOptions{})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			store, err := a.openSessions()
			if err != nil {
				return fail(a, err)
			}
			defer store.Close()

			sess, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return fail(a, err)
			}
			var state contextmgr.State
			if err := decodeState(sess.State, &state); err != nil {
				return fail(a, err)
			}

			if state.Summary != "" {
				a.render.Printf("%s\n%s\n\n", a.render.Header("summary"), state.Summary)
			}
			for _, m := range state.Messages {
				a.render.Printf("%s\n%s\n\n", a.render.Header(string(m.Role)), m.Content)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.OutOrStdout(), appOptions{})
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			store, err := a.openSessions()
			if err != nil {
				return fail(a, err)
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return fail(a, err)
			}
			a.render.Printf("%s\n", a.render.Success("deleted "+args[0]))
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}
