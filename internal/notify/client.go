// Package notify receives passive notifications for the local user from a
// Centrifuge feed and forwards them to backend listeners.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/centrifugal/centrifuge-go"
	"github.com/sirupsen/logrus"
)

// ResubscribeDelay is the pause before a failed subscription is retried.
const ResubscribeDelay = time.Second

// Client is a notification feed for one user. It implements
// backend.Notifier.
//
// Callers MUST call the Errors() method to read any errors from the channel.
type Client struct {
	client *centrifuge.Client
	sub    *centrifuge.Subscription
	user   online.ID
	logger *logrus.Entry

	errc chan error
	done chan struct{}

	mu           sync.Mutex
	listeners    map[int]backend.Listener
	nextListener int
}

// NewClient returns a feed client for user configured to connect to the
// websocket endpoint at url.
func NewClient(url string, user online.ID, l *logrus.Entry) *Client {
	return &Client{
		client:    centrifuge.NewJsonClient(url, centrifuge.DefaultConfig()),
		user:      user,
		logger:    l,
		errc:      make(chan error, 16),
		done:      make(chan struct{}),
		listeners: make(map[int]backend.Listener),
	}
}

// Connect connects to the feed and subscribes to the channel of the user.
func (c *Client) Connect() error {
	c.client.OnConnect(c)
	c.client.OnDisconnect(c)

	sub, err := c.client.NewSubscription(userChannel(c.user))
	if err != nil {
		return fmt.Errorf("new subscription: %w", err)
	}

	sub.OnPublish(c)
	sub.OnSubscribeError(c)
	sub.OnSubscribeSuccess(c)
	c.sub = sub

	if err = c.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err = sub.Subscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	return nil
}

// Subscribe implements backend.Notifier.
func (c *Client) Subscribe(l backend.Listener) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Errors returns a channel of events the feed could not decode.
//
// Callers MUST call this method to read from the channel.
func (c *Client) Errors() <-chan error {
	return c.errc
}

// Close stops any subscription retries and closes the underlying client.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}

	return c.client.Close()
}

// OnConnect implements centrifuge.ConnectHandler.
func (c *Client) OnConnect(_ *centrifuge.Client, _ centrifuge.ConnectEvent) {
	c.logger.Info("notification feed connected")
	c.broadcast(func(l backend.Listener) { l.ConnectionStatusChanged(online.StatusConnected) })
}

// OnDisconnect implements centrifuge.DisconnectHandler.
func (c *Client) OnDisconnect(_ *centrifuge.Client, e centrifuge.DisconnectEvent) {
	c.logger.
		WithField("reason", e.Reason).
		Warn("notification feed disconnected")

	c.broadcast(func(l backend.Listener) { l.ConnectionStatusChanged(online.StatusNoNetworkConnection) })
}

// OnPublish implements centrifuge.PublishHandler.
func (c *Client) OnPublish(_ *centrifuge.Subscription, e centrifuge.PublishEvent) {
	c.dispatch(e.Data)
}

// OnSubscribeError implements centrifuge.SubscribeErrorHandler.
func (c *Client) OnSubscribeError(s *centrifuge.Subscription, e centrifuge.SubscribeErrorEvent) {
	c.logger.
		WithError(SubscribeError(e.Error)).
		WithField("channel", s.Channel()).
		Error("failed to subscribe")

	// The feed may not know the user yet right after login.
	select {
	case <-c.done:
		return
	case <-time.After(ResubscribeDelay):
		if err := s.Subscribe(); err != nil {
			c.logger.
				WithError(err).
				WithField("channel", s.Channel()).
				Error("failed to subscribe")
		}
	}
}

// OnSubscribeSuccess implements centrifuge.SubscribeSuccessHandler.
func (c *Client) OnSubscribeSuccess(s *centrifuge.Subscription, _ centrifuge.SubscribeSuccessEvent) {
	c.logger.
		WithField("channel", s.Channel()).
		Info("subscribed to channel")
}

// dispatch decodes a publication and notifies every listener.
func (c *Client) dispatch(data []byte) {
	evt, err := UnmarshalEventJSON(data)
	if err != nil {
		c.report(err)
		return
	}

	switch e := evt.(type) {
	case InviteReceivedEvent:
		c.broadcast(func(l backend.Listener) { l.LobbyInviteReceived(e.From, e.Lobby) })
	case JoinRequestedEvent:
		c.broadcast(func(l backend.Listener) { l.JoinRequested(e.From, e.Connect) })
	case ConnectionStatusEvent:
		c.broadcast(func(l backend.Listener) { l.ConnectionStatusChanged(e.Status) })
	case ShutdownRequestedEvent:
		c.broadcast(func(l backend.Listener) { l.ShutdownRequested() })
	}
}

func (c *Client) report(err error) {
	select {
	case c.errc <- err:
	default:
		c.logger.
			WithError(err).
			Warn("dropping notification error")
	}
}

func (c *Client) broadcast(fn func(l backend.Listener)) {
	c.mu.Lock()
	ls := make([]backend.Listener, 0, len(c.listeners))
	for i := 0; i < c.nextListener; i++ {
		if l, ok := c.listeners[i]; ok {
			ls = append(ls, l)
		}
	}
	c.mu.Unlock()

	for _, l := range ls {
		fn(l)
	}
}

// userChannel returns the Centrifuge channel name for the given user.
//
// The user channel boundary ensures only a connection authenticated as the
// user can subscribe.
//
// See: https://centrifugal.dev/docs/server/channels#user-channel-boundary-
func userChannel(user online.ID) string {
	return fmt.Sprintf("user#%d", uint64(user))
}

var _ backend.Notifier = (*Client)(nil)
