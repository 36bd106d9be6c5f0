package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"packages/internal/remotesync"
)

func newSyncCmd(g *globals) *cobra.Command {
	var remoteName string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize enabled remotes once and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if remoteName != "" {
				remote, err := a.store.GetRemoteByName(ctx, remoteName)
				if err != nil {
					return fmt.Errorf("remote %q: %w", remoteName, err)
				}
				res, err := a.svc.SyncRemote(ctx, remote.ID.String())
				summary := remotesync.Summary{Remotes: 1, Packages: len(res.Packages), ByRemote: []remotesync.RemoteStats{{
					Remote:   remote.Name,
					Provider: res.Provider,
					Packages: len(res.Packages),
					Created:  res.Created,
					Updated:  res.Updated,
					Disabled: res.Disabled,
					Err:      err,
				}}}
				if err != nil {
					summary.Failed = 1
				}
				if renderErr := renderSummary(cmd.OutOrStdout(), summary); renderErr != nil {
					return renderErr
				}
				return err
			}

			if concurrency <= 0 {
				concurrency = g.cfg.SyncConcurrency
			}
			summary, err := a.runner.Run(ctx, concurrency)
			if renderErr := renderSummary(cmd.OutOrStdout(), summary); renderErr != nil {
				return renderErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&remoteName, "remote", "", "synchronize only the named remote")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "remotes synchronized in parallel (defaults to SYNC_CONCURRENCY)")
	return cmd
}

func renderSummary(w io.Writer, s remotesync.Summary) error {
	table := tablewriter.NewWriter(w)
	table.Header("Remote", "Provider", "Packages", "Created", "Updated", "Disabled", "Error")
	for _, r := range s.ByRemote {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		if err := table.Append(
			r.Remote,
			r.Provider,
			strconv.Itoa(r.Packages),
			strconv.Itoa(r.Created),
			strconv.Itoa(r.Updated),
			strconv.Itoa(r.Disabled),
			errText,
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d remotes, %d failed, %d packages\n", s.Remotes, s.Failed, s.Packages)
	return err
}
