package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/usercache/internal/app"
)

func newServeCommand(cfgPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: withApp(cfgPath, func(cmd *cobra.Command, a *app.App) error {
			return a.Serve(cmd.Context())
		}),
	}
}

// newWarmCommand loads every user into the cache. Run it against the same
// key store as the servers; with the local generation store a running
// server may treat the warmed entries as stale, so prefer gen_store: redis.
func newWarmCommand(cfgPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Warm up the cache with every user",
		RunE: withApp(cfgPath, func(cmd *cobra.Command, a *app.App) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Starting cache warming...")
			rep, err := a.Users.Warm(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "Error warming cache: %v\n", err)
				return err
			}
			if rep.Collection {
				fmt.Fprintf(out, "Cached user list with %d users\n", rep.Items)
			}
			fmt.Fprintf(out, "Cached %d individual users\n", rep.Items)
			if rep.Skipped > 0 {
				fmt.Fprintf(out, "Skipped %d entries changed during warm-up\n", rep.Skipped)
			}
			fmt.Fprintf(out, "Successfully warmed cache with %d users in %s\n", rep.Items, rep.Duration)
			return nil
		}),
	}
}

func newStatsCommand(cfgPath func() string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print key store statistics for the cached keyspace",
		RunE: withApp(cfgPath, func(cmd *cobra.Command, a *app.App) error {
			st := a.Users.Stats(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			if st.Error != "" {
				fmt.Fprintf(out, "error:              %s\n", st.Error)
			}
			fmt.Fprintf(out, "keys:               %d\n", st.KeyCount)
			for _, k := range st.Keys {
				fmt.Fprintf(out, "  %s\n", k)
			}
			fmt.Fprintf(out, "memory:             %s\n", st.MemoryUsage)
			fmt.Fprintf(out, "hits/misses:        %s/%s\n", humanize.Comma(st.HitCount), humanize.Comma(st.MissCount))
			fmt.Fprintf(out, "server version:     %s\n", st.ServerVersion)
			fmt.Fprintf(out, "connected clients:  %d\n", st.ConnectedClients)
			fmt.Fprintf(out, "commands processed: %s\n", humanize.Comma(st.CommandsProcessed))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON snapshot")
	return cmd
}
