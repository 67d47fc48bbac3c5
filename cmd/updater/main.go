package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var options UpdaterOptions

	rootCmd := &cobra.Command{
		Use:           "updater [-- arguments for the relaunched program]",
		Short:         "Update this installation from the release manifest and relaunch it",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Arguments = args
			return NewUpdaterApp(options).Run(cmd.Context())
		},
	}
	flags := rootCmd.Flags()
	flags.StringVar(&options.InstallDirectory, "install-dir", "", "Installation root (defaults to the directory above the updater)")
	flags.StringVar(&options.SettingsPath, "settings", "", "Settings file (defaults to liftoff.settings.json in the installation root)")
	flags.BoolVar(&options.NoRelaunch, "no-relaunch", false, "Install updates without starting the program afterwards")
	flags.BoolVar(&options.AllowHashMismatch, "allow-hash-mismatch", false, "Install archives whose checksum does not match the manifest")
	flags.StringVar(&options.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("updater [%s]\n", ldflagsSoftwareVersion)
		},
	})
	return rootCmd
}

var ldflagsSoftwareVersion = "debug"
