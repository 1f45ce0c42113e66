package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/lobby"
	"github.com/rickgao/lobby-client/internal/matchmaking"
	"github.com/rickgao/lobby-client/internal/protocol"
)

var (
	errMatchCanceled     = errors.New("matchmaking canceled")
	errServerUnavailable = errors.New("dedicated server unavailable")
)

type serverLine struct {
	MatchID string `json:"matchId"`
	Channel string `json:"channel"`
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	PodName string `json:"podName,omitempty"`
}

func newMatchmakeCmd(a *app) *cobra.Command {
	var (
		opts      matchmaking.StartOptions
		autoReady bool
		wait      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "matchmake <channel>",
		Short: "Queue for a match and wait for a dedicated server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel := args[0]
			ctx := cmd.Context()
			if wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, wait)
				defer cancel()
			}
			return a.withSession(ctx, func(ctx context.Context, c *lobby.Client) error {
				mm := c.Matchmaking()
				if err := mm.Start(ctx, channel, opts); err != nil {
					return err
				}
				a.logger.Info("matchmaking started", zap.String("channel", channel))

				tk, err := awaitServer(ctx, a, mm, channel, autoReady)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						cancelCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Connection.RequestTimeout)
						defer cancel()
						if cerr := mm.Cancel(cancelCtx, channel); cerr != nil {
							a.logger.Warn("cancel matchmaking", zap.Error(cerr))
						}
					}
					return err
				}
				return printJSON(cmd, serverLine{
					MatchID: tk.MatchID,
					Channel: tk.Channel,
					IP:      tk.Server.IP,
					Port:    tk.Server.Port,
					PodName: tk.Server.PodName,
				})
			})
		},
	}
	cmd.Flags().StringVar(&opts.ServerName, "server", "", "request a specific dedicated server")
	cmd.Flags().StringToIntVar(&opts.Latencies, "latency", nil, "region latencies in ms, e.g. us-east-1=40")
	cmd.Flags().BoolVar(&autoReady, "auto-ready", true, "confirm readiness as soon as a match is found")
	cmd.Flags().DurationVar(&wait, "wait", 0, "give up after this long (0 waits until interrupted)")
	return cmd
}

// awaitServer follows the ticket through its states until a server is
// assigned.
func awaitServer(ctx context.Context, a *app, mm *matchmaking.Tracker, channel string, autoReady bool) (matchmaking.Ticket, error) {
	var last matchmaking.Status
	for {
		tk, err := mm.Await(ctx, channel, func(tk matchmaking.Ticket) bool {
			return tk.Status != last
		})
		if err != nil {
			return tk, err
		}
		last = tk.Status

		a.logger.Info("matchmaking ticket",
			zap.String("channel", channel),
			zap.Stringer("status", tk.Status),
			zap.String("match_id", tk.MatchID),
		)
		switch tk.Status {
		case matchmaking.StatusFound:
			if autoReady {
				if err := mm.ConfirmReady(ctx, tk.MatchID); err != nil {
					return tk, fmt.Errorf("confirm ready: %w", err)
				}
			}
		case matchmaking.StatusAssigned:
			if tk.Server.Status != protocol.DSReady {
				return tk, fmt.Errorf("%w: %s", errServerUnavailable, tk.Server.Status)
			}
			return tk, nil
		case matchmaking.StatusRematching:
			a.logger.Warn("requeue banned", zap.Time("until", tk.BannedUntil))
			return tk, fmt.Errorf("%w until %s", protocol.ErrMatchmakingBanned, tk.BannedUntil.Format(time.RFC3339))
		case matchmaking.StatusCanceled:
			return tk, errMatchCanceled
		}
	}
}
