// Package notify implements the Notification Router.
//
// Push frames are decoded by their type tag into a protocol.Push variant and
// delivered to every handler subscribed to that tag, in subscription order.
// Subscriptions are independent of connection state and survive reconnects.
package notify
