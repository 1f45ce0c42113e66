package lobby

import (
	"context"
	"fmt"

	"github.com/rickgao/lobby-client/internal/protocol"
)

// SetUserStatus publishes the caller's availability and activity to friends.
func (c *Client) SetUserStatus(ctx context.Context, availability, activity string) error {
	switch availability {
	case protocol.AvailabilityOnline, protocol.AvailabilityBusy,
		protocol.AvailabilityInvisible, protocol.AvailabilityOffline:
	default:
		return fmt.Errorf("unknown availability %q", availability)
	}
	_, err := c.manager.Call(ctx, protocol.TypeSetUserStatusRequest, protocol.SetUserStatusRequest{
		Availability: availability,
		Activity:     activity,
	})
	return err
}

// ListFriendsStatus returns the presence of every friend.
func (c *Client) ListFriendsStatus(ctx context.Context) ([]protocol.FriendStatus, error) {
	frame, err := c.manager.Call(ctx, protocol.TypeFriendsStatusRequest, nil)
	if err != nil {
		return nil, err
	}
	var resp protocol.FriendsStatusResponse
	if err := frame.Decode(&resp); err != nil {
		return nil, err
	}
	return resp.Friends, nil
}

// PullAsyncNotifications asks the lobby to deliver notifications queued while
// the caller was offline. They arrive as GenericNotification pushes after
// this returns; the result is how many the lobby reported.
func (c *Client) PullAsyncNotifications(ctx context.Context) (int, error) {
	frame, err := c.manager.Call(ctx, protocol.TypeOfflineNotificationRequest, nil)
	if err != nil {
		return 0, err
	}
	var resp protocol.OfflineNotificationResponse
	if err := frame.Decode(&resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
