package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maruel/bgstudio/internal/models"
	"github.com/maruel/bgstudio/internal/studio"
)

var errLoginFailed = errors.New("no member with that email")

func (a *app) registerCmd() *cobra.Command {
	var reg models.Registration
	var roles []string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a member profile and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, r := range roles {
				reg.Roles = append(reg.Roles, models.UserRole(r))
			}
			return a.run(func(s *studio.Studio) error {
				u, err := s.Session.Register(reg)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&reg.Email, "email", "", "Email address (required)")
	f.StringVar(&reg.DisplayName, "name", "", "Display name")
	f.StringVar(&reg.Password, "password", "", "Password, required when auth.verify_passwords is set")
	f.StringVar(&reg.Bio, "bio", "", "Short biography")
	f.StringVar(&reg.Location, "location", "", "Location")
	f.StringSliceVar(&reg.Skills, "skills", nil, "Comma separated skills")
	f.StringSliceVar(&reg.Interests, "interests", nil, "Comma separated interests")
	f.StringSliceVar(&roles, "roles", nil, "Comma separated roles (designer, freelancer, service_provider, publisher)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in as the first member with this email",
		Long: `Sign in as the first member with this email.

Unless auth.verify_passwords is set in bgs.yaml, the password is not checked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(s *studio.Studio) error {
				ok, err := s.Session.Login(args[0], password)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", errLoginFailed, args[0])
				}
				return printJSON(cmd.OutOrStdout(), s.Session.Current())
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.run(func(s *studio.Studio) error {
				s.Session.Logout()
				return nil
			})
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(func(s *studio.Studio) error {
				u := s.Session.Current()
				if u == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
}

func (a *app) switchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <user-id>",
		Short: "Sign in as another existing member without a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(s *studio.Studio) error {
				if !s.Session.SwitchUser(models.UserID(args[0])) {
					return fmt.Errorf("unknown user %q", args[0])
				}
				return printJSON(cmd.OutOrStdout(), s.Session.Current())
			})
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	var (
		name, bio, location, avatar, website string
		skills, interests, roles             []string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change fields of the signed-in member's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			var p models.UserPatch
			if f.Changed("name") {
				p.DisplayName = &name
			}
			if f.Changed("bio") {
				p.Bio = &bio
			}
			if f.Changed("location") {
				p.Location = &location
			}
			if f.Changed("avatar") {
				p.AvatarURL = &avatar
			}
			if f.Changed("website") {
				p.Website = &website
			}
			if f.Changed("skills") {
				p.Skills = &skills
			}
			if f.Changed("interests") {
				p.Interests = &interests
			}
			if f.Changed("roles") {
				r := make([]models.UserRole, 0, len(roles))
				for _, v := range roles {
					r = append(r, models.UserRole(v))
				}
				p.Roles = &r
			}
			return a.run(func(s *studio.Studio) error {
				u, err := s.Session.UpdateUser(p)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "Display name")
	f.StringVar(&bio, "bio", "", "Short biography")
	f.StringVar(&location, "location", "", "Location")
	f.StringVar(&avatar, "avatar", "", "Avatar URL")
	f.StringVar(&website, "website", "", "Website")
	f.StringSliceVar(&skills, "skills", nil, "Comma separated skills, replacing the current ones")
	f.StringSliceVar(&interests, "interests", nil, "Comma separated interests, replacing the current ones")
	f.StringSliceVar(&roles, "roles", nil, "Comma separated roles, replacing the current ones")
	return cmd
}

func (a *app) usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List members; the signed-in one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(func(s *studio.Studio) error {
				cur, _ := s.Session.CurrentID()
				w := cmd.OutOrStdout()
				for u := range s.Session.Users() {
					mark := " "
					if u.ID == cur {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %s\t%s\t%s\n", mark, u.ID, u.Email, u.DisplayName)
				}
				return nil
			})
		},
	}
}
