package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/lobby-client/internal/lobby"
	"github.com/rickgao/lobby-client/internal/protocol"
)

// pushTypes are printed by listen.
var pushTypes = []string{
	protocol.TypePersonalChatNotif,
	protocol.TypePartyChatNotif,
	protocol.TypePartyGetInvitedNotif,
	protocol.TypePartyKickNotif,
	protocol.TypePartyJoinNotif,
	protocol.TypePartyLeaveNotif,
	protocol.TypeUserStatusNotif,
	protocol.TypeRequestFriendsNotif,
	protocol.TypeAcceptFriendsNotif,
	protocol.TypeMatchmakingNotif,
	protocol.TypeSetReadyConsentNotif,
	protocol.TypeRematchmakingNotif,
	protocol.TypeDSNotif,
	protocol.TypeMessageNotif,
	protocol.TypeDisconnectNotif,
	protocol.TypeConnected,
	protocol.TypeDisconnecting,
}

type pushLine struct {
	Type string        `json:"type"`
	Push protocol.Push `json:"push"`
}

var errSessionEnded = errors.New("session ended")

func newListenCmd(a *app) *cobra.Command {
	var (
		status   string
		activity string
		offline  bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stay connected and print every notification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, c *lobby.Client) error {
				for _, t := range pushTypes {
					c.Subscribe(t, func(p protocol.Push) {
						if err := printJSON(cmd, pushLine{Type: p.PushType(), Push: p}); err != nil {
							a.logger.Warn("write notification", zap.Error(err))
						}
					})
				}
				ended := make(chan protocol.Disconnected, 1)
				lobby.On(c, func(p protocol.Disconnected) {
					select {
					case ended <- p:
					default:
					}
				})

				if status != "" {
					if err := c.SetUserStatus(ctx, status, activity); err != nil {
						return err
					}
				}
				if offline {
					n, err := c.PullAsyncNotifications(ctx)
					if err != nil {
						return err
					}
					a.logger.Info("pulled offline notifications", zap.Int("count", n))
				}

				g, gctx := errgroup.WithContext(ctx)
				a.serveMetrics(gctx, g)
				g.Go(func() error {
					select {
					case <-gctx.Done():
						return nil
					case p := <-ended:
						a.logger.Warn("lobby session ended", zap.String("reason", p.Reason), zap.Error(p.Err))
						return errSessionEnded
					}
				})
				err := g.Wait()
				if errors.Is(err, errSessionEnded) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "availability to publish on connect (online, busy, invisible)")
	cmd.Flags().StringVar(&activity, "activity", "", "activity text published with --status")
	cmd.Flags().BoolVar(&offline, "offline", true, "pull notifications queued while offline")
	return cmd
}
