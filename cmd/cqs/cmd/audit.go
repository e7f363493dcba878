package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/audit"
)

func newAuditCmd() *cobra.Command {
	var enable bool
	var disable bool
	var ttl time.Duration
	var reason string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Toggle or inspect audit mode",
		Long: `audit records whether audit mode is on, with an optional reason and
expiry, in the project's index directory. With no flags it prints the current
state; --enable turns it on for --ttl (default 1h); --disable turns it off.
Search does not read this state: notes.toml annotations are applied either way.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return fmt.Errorf("audit: --enable and --disable are mutually exclusive")
			}

			p, err := openProject(cmd.Context(), projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			switch {
			case enable:
				mode, err := audit.Enable(p.DataDir, ttl, reason)
				if err != nil {
					return fmt.Errorf("audit: enable: %w", err)
				}
				return printAuditMode(cmd, mode)
			case disable:
				mode, err := audit.Disable(p.DataDir)
				if err != nil {
					return fmt.Errorf("audit: disable: %w", err)
				}
				return printAuditMode(cmd, mode)
			default:
				mode, err := audit.Load(p.DataDir)
				if err != nil {
					return fmt.Errorf("audit: %w", err)
				}
				return printAuditMode(cmd, mode)
			}
		},
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "Turn audit mode on")
	cmd.Flags().BoolVar(&disable, "disable", false, "Turn audit mode off")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "How long audit mode stays on when --enable is given")
	cmd.Flags().StringVar(&reason, "reason", "", "Why audit mode is being enabled")

	return cmd
}

func printAuditMode(cmd *cobra.Command, mode audit.Mode) error {
	if !mode.IsActive() {
		fmt.Fprintln(cmd.OutOrStdout(), "audit mode: off")
		return nil
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "audit mode: on")
	if remaining := mode.Remaining(); remaining > 0 {
		fmt.Fprintf(w, "  expires in: %s\n", remaining.Round(time.Second))
	}
	if mode.Reason != "" {
		fmt.Fprintf(w, "  reason: %s\n", mode.Reason)
	}
	return nil
}
