package lobby

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/rickgao/lobby-client/internal/protocol"
)

// ErrEmptyMessage is returned for chat text that is blank after trimming.
var ErrEmptyMessage = errors.New("empty chat message")

// SendPersonalChat sends a direct message to userID.
func (c *Client) SendPersonalChat(ctx context.Context, userID, text string) error {
	msg, err := normalize(text)
	if err != nil {
		return err
	}
	_, err = c.manager.Call(ctx, protocol.TypePersonalChatRequest, protocol.PersonalChatRequest{
		To:      userID,
		Payload: msg,
	})
	return err
}

// SendPartyChat sends a message to every member of the caller's party.
func (c *Client) SendPartyChat(ctx context.Context, text string) error {
	msg, err := normalize(text)
	if err != nil {
		return err
	}
	_, err = c.manager.Call(ctx, protocol.TypePartyChatRequest, protocol.PartyChatRequest{Payload: msg})
	return err
}

func normalize(text string) (string, error) {
	msg := strings.TrimSpace(norm.NFC.String(text))
	if msg == "" {
		return "", ErrEmptyMessage
	}
	return msg, nil
}
