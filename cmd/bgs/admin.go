package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
	"github.com/maruel/bgstudio/internal/studio"
)

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema <collection>",
		Short:     "Print the JSON Schema of a stored collection",
		Args:      cobra.ExactArgs(1),
		ValidArgs: studio.Collections(),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := studio.Schema(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history [key]",
		Short: "Show the recorded writes of a key, or of every key",
		Long: `Show the recorded writes of a key, or of every key.

Requires the file backend with history: true in bgs.yaml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return a.run(func(s *studio.Studio) error {
				commits, err := s.History(key, n)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, c := range commits {
					fmt.Fprintf(w, "%s %s %s\n", c.Hash[:12], c.When.Format("2006-01-02 15:04:05"), c.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 20, "Maximum number of entries")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the signed-in member whenever another process changes the data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.run(func(s *studio.Studio) error {
				w := cmd.OutOrStdout()
				show := func(u *models.User) {
					if u == nil {
						fmt.Fprintln(w, "not signed in")
						return
					}
					fmt.Fprintf(w, "signed in as %s (%s)\n", u.DisplayName, u.ID)
				}
				defer s.Session.Observe(show)()
				defer logChanges(s.Projects)()
				defer logChanges(s.Jobs)()
				defer logChanges(s.Events)()
				defer logChanges(s.Groups)()
				defer logChanges(s.Listings)()
				if err := s.Follow(ctx); err != nil {
					return err
				}
				show(s.Session.Current())
				slog.Info("Watching for changes", "dir", a.dataDir)
				<-ctx.Done()
				return nil
			})
		},
	}
}

// logChanges logs the size of c after each change.
func logChanges[T jsonldb.Row[T]](c *jsonldb.Collection[T]) (cancel func()) {
	key := c.Key()
	return c.Observe(func(rows []T) {
		slog.Info("Changed", "key", key, "count", len(rows))
	})
}
