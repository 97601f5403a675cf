package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gerunddev/ngmigrate/internal/app"
)

func projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects uploaded to the backend",
		Long: `List the projects previously uploaded to the migration backend. The printed
path can be passed to --project.

Example:
  ngmigrate projects`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFactory(app.Config{})
			if err != nil {
				return err
			}

			projects, err := a.Projects(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, "No uploaded projects")
				return nil
			}
			for _, p := range projects {
				fmt.Fprintf(out, "  %s\n", p.Path())
			}
			return nil
		},
	}
}
