package stream

import (
	"sync"
	"time"

	"backend-rxdispatch/internal/shared/geo"

	"github.com/google/uuid"
)

const defaultSendBuffer = 64

// Client is one connection in a room. Messages queued for it are drained by
// the transport through Outbound until Done is closed.
type Client struct {
	id         string
	trackingID string
	role       Role

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	onLocation func(geo.Point)
}

type JoinOption func(*Client)

// WithLocationObserver registers fn to be called with every driver position
// delivered to this client. fn must not block.
func WithLocationObserver(fn func(geo.Point)) JoinOption {
	return func(c *Client) { c.onLocation = fn }
}

func newClient(trackingID string, role Role, buffer int) *Client {
	return &Client{
		id:         uuid.NewString(),
		trackingID: trackingID,
		role:       role,
		send:       make(chan []byte, buffer),
		done:       make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }
func (c *Client) TrackingID() string { return c.trackingID }
func (c *Client) Role() Role { return c.role }
func (c *Client) Outbound() <-chan []byte { return c.send }
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue waits at most timeout for room in the send buffer. The send
// channel is never closed, so a racing Leave cannot panic a sender.
func (c *Client) enqueue(msg []byte, timeout time.Duration) bool {
	if c.closed() {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	case <-timer.C:
		return false
	}
}
