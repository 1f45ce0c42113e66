package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rickgao/lobby-client/internal/lobby"
)

func newPartyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "party",
		Short: "Party operations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create a party led by the caller",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
					p, err := c.Party().Create(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, p)
				})
			},
		},
		&cobra.Command{
			Use:   "info",
			Short: "Show the caller's party",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
					p, err := c.Party().Info(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, p)
				})
			},
		},
		&cobra.Command{
			Use:   "invite <user-id>",
			Short: "Invite a friend into the party",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
					return c.Party().Invite(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "join <party-id> <invitation-token>",
			Short: "Join a party using an invitation",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
					p, err := c.Party().Join(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					return printJSON(cmd, p)
				})
			},
		},
		&cobra.Command{
			Use:   "leave",
			Short: "Leave the current party",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
					return c.Party().Leave(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "kick <user-id>",
			Short: "Remove a member (leader only)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
					return c.Party().Kick(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "chat <text>",
			Short: "Send a message to the party",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
					return c.SendPartyChat(ctx, args[0])
				})
			},
		},
	)
	return cmd
}
