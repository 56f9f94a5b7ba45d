// Package cli is the usercache command line.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/usercache"
	"github.com/unkn0wn-root/usercache/internal/app"
	"github.com/unkn0wn-root/usercache/internal/config"
)

// NewRootCommand builds the command tree:
//
//	usercache serve
//	usercache warm
//	usercache stats
func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "usercache",
		Short:         "User records API with a read-through cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (USERCACHE_* env vars override it)")

	cfgPath := func() string { return cfgFile }
	root.AddCommand(
		newServeCommand(cfgPath),
		newWarmCommand(cfgPath),
		newStatsCommand(cfgPath),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// withApp loads the configuration, builds the App for the duration of run
// and closes it afterwards.
func withApp(cfgPath func() string, run func(cmd *cobra.Command, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgPath())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.Close(stopCtx); err != nil {
				a.Logger.Error("shutdown incomplete", usercache.Fields{"command": cmd.CommandPath(), "err": err})
			}
		}()
		return run(cmd, a)
	}
}
