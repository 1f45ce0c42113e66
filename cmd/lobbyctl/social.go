package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/lobby-client/internal/friends"
	"github.com/rickgao/lobby-client/internal/lobby"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <user-id> <text>",
		Short: "Send a personal chat message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
				return c.SendPersonalChat(ctx, args[0], args[1])
			})
		},
	}
}

func newNotificationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "Pull notifications queued while offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
				n, err := c.PullAsyncNotifications(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]int{"count": n})
			})
		},
	}
}

// friendAction wraps a single-user friends mutation as a subcommand.
func friendAction(a *app, use, short string, op func(*friends.Tracker, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
				return op(c.Friends(), ctx, args[0])
			})
		},
	}
}

func newFriendsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "Friends and presence operations",
	}

	list := &cobra.Command{
		Use:       "list [friends|incoming|outgoing]",
		Short:     "List friends or pending requests",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"friends", "incoming", "outgoing"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := "friends"
			if len(args) == 1 {
				which = args[0]
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
				var (
					ids []string
					err error
				)
				switch which {
				case "friends":
					ids, err = c.Friends().LoadFriends(ctx)
				case "incoming":
					ids, err = c.Friends().ListIncoming(ctx)
				case "outgoing":
					ids, err = c.Friends().ListOutgoing(ctx)
				default:
					return fmt.Errorf("unknown list %q", which)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, ids)
			})
		},
	}

	status := &cobra.Command{
		Use:   "status [user-id]",
		Short: "Show friendship status with a user, or presence of all friends",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
				if len(args) == 1 {
					st, err := c.Friends().Status(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd, map[string]string{"userId": args[0], "status": st.String()})
				}
				statuses, err := c.ListFriendsStatus(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, statuses)
			})
		},
	}

	presence := &cobra.Command{
		Use:   "presence <availability> [activity]",
		Short: "Publish the caller's availability",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			activity := ""
			if len(args) == 2 {
				activity = args[1]
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
				return c.SetUserStatus(ctx, args[0], activity)
			})
		},
	}

	cmd.AddCommand(
		friendAction(a, "request", "Send a friend request", (*friends.Tracker).Request),
		friendAction(a, "accept", "Accept an incoming request", (*friends.Tracker).Accept),
		friendAction(a, "reject", "Reject an incoming request", (*friends.Tracker).Reject),
		friendAction(a, "cancel", "Withdraw an outgoing request", (*friends.Tracker).Cancel),
		friendAction(a, "unfriend", "Remove a friend", (*friends.Tracker).Unfriend),
		list,
		status,
		presence,
	)
	return cmd
}
