package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"dfl-stack/shared/storage"

	"github.com/spf13/cobra"
)

func newStateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Read and write closed-loop state",
	}
	cmd.AddCommand(
		newStateGetCmd(opts),
		newStateSetCmd(opts),
		newStateHistoryCmd(opts),
		newStateRollbackCmd(opts),
	)
	return cmd
}

func (o *options) openState() (*storage.ClosedLoop, *storage.Manager, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return storage.Open(cfg.State.Dir, cfg.State.HistoryLimit, cfg.State.PriorityKeys...)
}

func newStateGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the recovered value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, _, err := opts.openState()
			if err != nil {
				return err
			}

			raw := state.GetRaw(args[0])
			if raw == nil {
				return fmt.Errorf("no state stored for %q", args[0])
			}

			var buf bytes.Buffer
			if err := json.Indent(&buf, raw, "", "  "); err != nil {
				return fmt.Errorf("failed to format %q: %w", args[0], err)
			}
			buf.WriteByte('\n')
			_, err = buf.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}

func newStateSetCmd(opts *options) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "set <key> <file|->",
		Short: "Store a JSON value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[1] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[1])
			}
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("value for %q is not valid JSON", args[0])
			}

			state, _, err := opts.openState()
			if err != nil {
				return err
			}
			if err := state.SetState(args[0], json.RawMessage(data), reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stored %s\n", theme.Success(symbolSuccess), args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "Manual update", "reason recorded with the change")
	return cmd
}

func newStateHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history <key>",
		Short: "List the versions of a key that can be restored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, err := opts.openState()
			if err != nil {
				return err
			}

			current, err := manager.Snapshot(args[0])
			if err != nil {
				return fmt.Errorf("failed to load %q: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s version %d (%s) %s\n", theme.Bold(args[0]), theme.Info("current"),
				current.Version, formatMillis(current.Timestamp), theme.Dim(current.Checksum))
			for _, v := range manager.History(args[0]) {
				marker := " "
				if v == current.Version {
					marker = "*"
				}
				fmt.Fprintf(out, "  %s v%d\n", marker, v)
			}
			return nil
		},
	}
}

func newStateRollbackCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <key> [version]",
		Short: "Restore a previous version of a key (default: the one before current)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var version int64
			if len(args) == 2 {
				v, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[1], err)
				}
				version = v
			}

			state, manager, err := opts.openState()
			if err != nil {
				return err
			}
			if _, err := manager.Snapshot(args[0]); err != nil {
				return fmt.Errorf("failed to load %q: %w", args[0], err)
			}

			snap, err := state.Rollback(args[0], version)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s restored to version %d\n", theme.Success(symbolSuccess), args[0], snap.Version)
			return nil
		},
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
