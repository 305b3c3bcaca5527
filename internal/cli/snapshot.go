package cli

import (
	"errors"
	"fmt"
	"time"

	"dfl-stack/shared/snapshot"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Checkpoint and restore the working tree",
	}

	manager := func() (*snapshot.Manager, error) {
		cfg, err := opts.loadConfig()
		if err != nil {
			return nil, err
		}
		return snapshot.New(cfg.Snapshot.Dir), nil
	}

	var message string
	create := &cobra.Command{
		Use:   "create",
		Short: "Commit the working tree as a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager()
			if err != nil {
				return err
			}
			snap, err := m.Create(cmd.Context(), message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%d files)\n", theme.Success(symbolSuccess), theme.Bold(snap.ID), shortCommit(snap.Commit), len(snap.Files))
			return nil
		},
	}
	create.Flags().StringVarP(&message, "message", "m", "", "snapshot description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager()
			if err != nil {
				return err
			}
			snaps, err := m.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(snaps) == 0 {
				fmt.Fprintln(out, theme.Dim("no snapshots"))
				return nil
			}
			for _, s := range snaps {
				fmt.Fprintf(out, "%s  %s  %s  %s\n", theme.Bold(s.ID), theme.Dim(time.UnixMilli(s.Timestamp).Format("2006-01-02 15:04")), shortCommit(s.Commit), s.Description)
			}
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore [id]",
		Short: "Hard-reset the working tree to a snapshot (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager()
			if err != nil {
				return err
			}

			var snap *snapshot.Snapshot
			if len(args) == 1 {
				snap, err = m.Restore(cmd.Context(), args[0])
			} else {
				snap, err = m.RestoreLatest(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s restored %s (%s)\n", theme.Success(symbolSuccess), theme.Bold(snap.ID), snap.Description)
			return nil
		},
	}

	diff := &cobra.Command{
		Use:   "diff",
		Short: "Show changes since the latest snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager()
			if err != nil {
				return err
			}
			lines, err := m.Diff(cmd.Context())
			if errors.Is(err, snapshot.ErrNoSnapshots) {
				fmt.Fprintln(cmd.OutOrStdout(), theme.Dim("no snapshots"))
				return nil
			}
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), diffColor(l))
			}
			return nil
		},
	}

	cmd.AddCommand(create, list, restore, diff)
	return cmd
}

func diffColor(line string) string {
	switch {
	case len(line) > 0 && line[0] == '+':
		return theme.Success(line)
	case len(line) > 0 && line[0] == '-':
		return theme.Error(line)
	case len(line) > 1 && line[:2] == "@@":
		return theme.Info(line)
	}
	return line
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
