package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/maruel/bgstudio/internal/catalog"
	"github.com/maruel/bgstudio/internal/models"
	"github.com/maruel/bgstudio/internal/studio"
)

// contentCollections are the collections create, list and delete accept.
var contentCollections = []string{"projects", "jobs", "events", "groups", "listings"}

func unknownCollection(name string) error {
	return fmt.Errorf("unknown collection %q (supported: %v)", name, contentCollections)
}

func decode[T any](data string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("invalid --json: %w", err)
	}
	return v, nil
}

func (a *app) createCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "create <collection> --json '{...}'",
		Short: "Create a project, job, event, group or listing",
		Long: `Create a project, job, event, group or listing from a JSON object.

The id and creation time are assigned. The owner (creatorId, posterId,
organizerId or sellerId) defaults to the signed-in member.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: contentCollections,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(s *studio.Studio) error {
				v, err := create(s.Catalog, args[0], data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), v)
			})
		},
	}
	cmd.Flags().StringVar(&data, "json", "{}", "Entity fields as a JSON object")
	return cmd
}

func create(c *catalog.Catalog, collection, data string) (any, error) {
	switch collection {
	case "projects":
		v, err := decode[models.Project](data)
		if err != nil {
			return nil, err
		}
		return c.Projects.Create(v)
	case "jobs":
		v, err := decode[models.Job](data)
		if err != nil {
			return nil, err
		}
		return c.Jobs.Create(v)
	case "events":
		v, err := decode[models.Event](data)
		if err != nil {
			return nil, err
		}
		return c.Events.Create(v)
	case "groups":
		v, err := decode[models.Group](data)
		if err != nil {
			return nil, err
		}
		return c.Groups.Create(v)
	case "listings":
		v, err := decode[models.Listing](data)
		if err != nil {
			return nil, err
		}
		return c.Listings.Create(v)
	default:
		return nil, unknownCollection(collection)
	}
}

func (a *app) listCmd() *cobra.Command {
	var f catalog.Filter
	var owner string
	cmd := &cobra.Command{
		Use:       "list <collection>",
		Short:     "List projects, jobs, events, groups or listings",
		Args:      cobra.ExactArgs(1),
		ValidArgs: contentCollections,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Owner = models.UserID(owner)
			return a.run(func(s *studio.Studio) error {
				return list(cmd.OutOrStdout(), s.Catalog, args[0], f)
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.Query, "query", "", "Text to search for, ignoring case")
	fl.StringVar(&f.Tag, "tag", "", "Tag, skill or category to match")
	fl.StringVar(&owner, "owner", "", "Owner user id")
	fl.BoolVar(&f.Newest, "newest", false, "Sort newest first")
	return cmd
}

func list(w io.Writer, c *catalog.Catalog, collection string, f catalog.Filter) error {
	switch collection {
	case "projects":
		return printJSON(w, c.Projects.List(f))
	case "jobs":
		return printJSON(w, c.Jobs.List(f))
	case "events":
		return printJSON(w, c.Events.List(f))
	case "groups":
		return printJSON(w, c.Groups.List(f))
	case "listings":
		return printJSON(w, c.Listings.List(f))
	default:
		return unknownCollection(collection)
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "delete <collection> <id>",
		Short:     "Delete a project, job, event, group or listing",
		Args:      cobra.ExactArgs(2),
		ValidArgs: contentCollections,
		RunE: func(_ *cobra.Command, args []string) error {
			return a.run(func(s *studio.Studio) error {
				id := args[1]
				switch args[0] {
				case "projects":
					return s.Catalog.Projects.Delete(models.ProjectID(id))
				case "jobs":
					return s.Catalog.Jobs.Delete(models.JobID(id))
				case "events":
					return s.Catalog.Events.Delete(models.EventID(id))
				case "groups":
					return s.Catalog.Groups.Delete(models.GroupID(id))
				case "listings":
					return s.Catalog.Listings.Delete(models.ListingID(id))
				default:
					return unknownCollection(args[0])
				}
			})
		},
	}
}

func (a *app) joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <group-id>",
		Short: "Join a group as the signed-in member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(s *studio.Studio) error {
				g, err := s.Catalog.Groups.Join(models.GroupID(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), g)
			})
		},
	}
}

func (a *app) leaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <group-id>",
		Short: "Leave a group as the signed-in member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(s *studio.Studio) error {
				g, err := s.Catalog.Groups.Leave(models.GroupID(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), g)
			})
		},
	}
}

func (a *app) repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Replace display names stored as user references with user ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(func(s *studio.Studio) error {
				rep, err := s.Catalog.RepairReferences()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
}
