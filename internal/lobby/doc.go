// Package lobby composes a complete lobby session client.
//
// A Client owns one push router, one connection manager, one session guard
// and the party, friends and matchmaking trackers. Everything is created by
// New from explicit configuration; there is no package-level state, so a
// process can hold several independent sessions.
//
//	c := lobby.New(lobby.ConfigFrom(cfg), cred, lobby.WithLogger(logger))
//	defer c.Close()
//	if err := c.Connect(ctx); err != nil {
//		return err
//	}
//	lobby.On(c, func(m protocol.PersonalChatReceived) { ... })
package lobby
