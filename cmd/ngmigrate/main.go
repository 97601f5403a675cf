// Package main is the entry point for the ngmigrate CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gerunddev/ngmigrate/internal/app"
	"github.com/gerunddev/ngmigrate/internal/gateway"
	"github.com/gerunddev/ngmigrate/internal/journal"
)

// appFactory is the function used to create a new app.App.
// It can be replaced in tests to mock app creation.
var appFactory = defaultAppFactory

// defaultAppFactory is the production app factory implementation.
func defaultAppFactory(cfg app.Config) (App, error) {
	return app.New(cfg)
}

// App interface defines the methods needed from app.App for testing.
type App interface {
	Run(ctx context.Context) error
	Projects(ctx context.Context) ([]gateway.ProjectEntry, error)
	Runs(limit int) ([]*journal.Run, error)
	RunEntries(runID string) (*journal.Run, []*journal.Entry, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts app.Config

	cmd := &cobra.Command{
		Use:   "ngmigrate",
		Short: "Interactive Angular upgrade, audit and framework migration wizard",
		Long: `ngmigrate walks an Angular project through a staged wizard backed by the
migration service: upload or select a project, analyze it, scan for deprecated
code and apply AI suggested fixes, audit dependencies, or preview and create a
framework migration.

Examples:
  ngmigrate --upload shop.zip                       # Upgrade and fix an uploaded archive
  ngmigrate --variant audit --project e83cc75d/shop # Audit a previously uploaded project
  ngmigrate --variant framework --git https://github.com/acme/shop --name shop-react`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFactory(opts)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&opts.Variant, "variant", "v", "",
		"Wizard to run: fix, audit or framework (default from config)")
	cmd.Flags().StringVarP(&opts.UploadPath, "upload", "u", "",
		"Zip archive to upload as the project")
	cmd.Flags().StringVarP(&opts.GitURL, "git", "g", "",
		"Git repository URL to use as the project")
	cmd.Flags().StringVarP(&opts.ProjectPath, "project", "p", "",
		"Previously uploaded project (see 'ngmigrate projects')")
	cmd.Flags().StringVarP(&opts.ProjectName, "name", "n", "",
		"Default name for a project created by the framework wizard")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false,
		"Do not record backend writes in the replay journal")
	cmd.MarkFlagsMutuallyExclusive("upload", "git", "project")

	cmd.AddCommand(projectsCmd())
	cmd.AddCommand(journalCmd())

	return cmd
}
