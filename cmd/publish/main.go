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
	var options PublishOptions

	rootCmd := &cobra.Command{
		Use:           "publish <version> <artifactsDir>",
		Short:         "Package build outputs, upload them and register the release in the manifest",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Version, options.ArtifactsDirectory = args[0], args[1]
			return NewPublishApp(options).Run(cmd.Context())
		},
	}
	rootCmd.Flags().StringVar(&options.SettingsPath, "settings", "", "Publisher settings file (defaults to "+defaultSettingsFileName+" when present)")
	rootCmd.Flags().StringVar(&options.Notes, "notes", "", "Release notes recorded in the manifest")
	rootCmd.Flags().StringVar(&options.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("publish [%s]\n", ldflagsSoftwareVersion)
		},
	})
	return rootCmd
}

var ldflagsSoftwareVersion = "debug"
