package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"backend-rxdispatch/internal/eta"
	"backend-rxdispatch/internal/logging"
	"backend-rxdispatch/internal/shared/geo"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultRoomCapacity   = 50
	DefaultSendTimeout    = 250 * time.Millisecond
	defaultPublishTimeout = 5 * time.Second
)

// Sample is an accepted driver position handed to publishers.
type Sample struct {
	TrackingID string    `json:"tracking_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type LocationPublisher interface {
	PublishLocation(ctx context.Context, s Sample) error
}

type RoomStats struct {
	TrackingID  string    `json:"tracking_id"`
	Connections int       `json:"connections"`
	Drivers     int       `json:"drivers"`
	Observers   int       `json:"observers"`
	CreatedAt   time.Time `json:"created_at"`
}

type room struct {
	id        string
	createdAt time.Time

	// clients is guarded by Hub.mu.
	clients map[*Client]struct{}

	// fanout serializes broadcasts so every member sees them in receipt order.
	fanout sync.Mutex
}

type Option func(*Hub)

func WithCapacity(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.capacity = n
		}
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) { h.sendTimeout = d }
}

func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.log = logging.OrNop(l) }
}

func WithPublishers(p ...LocationPublisher) Option {
	return func(h *Hub) { h.publishers = append(h.publishers, p...) }
}

// Hub is the room registry. Rooms exist only while they have members.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room

	capacity    int
	sendTimeout time.Duration
	sendBuffer  int
	now         func() time.Time
	log         *zap.Logger

	publishers []LocationPublisher
	publishing sync.WaitGroup
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:       map[string]*room{},
		capacity:    DefaultRoomCapacity,
		sendTimeout: DefaultSendTimeout,
		sendBuffer:  defaultSendBuffer,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Join adds a connection to the room for trackingID, creating the room on
// first use. A full room rejects the connection with ErrRoomFull.
func (h *Hub) Join(trackingID string, role Role, opts ...JoinOption) (*Client, error) {
	if trackingID == "" {
		return nil, ErrInvalidTrackingID
	}
	c := newClient(trackingID, role, h.sendBuffer)
	for _, o := range opts {
		o(c)
	}

	h.mu.Lock()
	r, ok := h.rooms[trackingID]
	if !ok {
		r = &room{id: trackingID, createdAt: h.now(), clients: map[*Client]struct{}{}}
		h.rooms[trackingID] = r
	}
	if len(r.clients) >= h.capacity {
		size := len(r.clients)
		h.mu.Unlock()
		h.log.Warn("room full, connection rejected",
			zap.String("tracking_id", trackingID),
			zap.String("role", string(role)),
			zap.Int("connections", size))
		return nil, ErrRoomFull
	}
	r.clients[c] = struct{}{}
	size := len(r.clients)
	h.mu.Unlock()

	h.log.Info("client joined",
		zap.String("tracking_id", trackingID),
		zap.String("client_id", c.id),
		zap.String("role", string(role)),
		zap.Int("connections", size))

	h.sendTo(c, ConnectedMessage{Type: TypeConnected, TrackingID: trackingID, ClientID: c.id, Role: role})
	return c, nil
}

// Leave removes c from its room. It is safe to call more than once.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	r, ok := h.rooms[c.trackingID]
	if !ok {
		h.mu.Unlock()
		c.close()
		return
	}
	if _, member := r.clients[c]; !member {
		h.mu.Unlock()
		c.close()
		return
	}
	delete(r.clients, c)
	remaining := len(r.clients)
	if remaining == 0 {
		delete(h.rooms, c.trackingID)
	}
	h.mu.Unlock()
	c.close()

	h.log.Info("client left",
		zap.String("tracking_id", c.trackingID),
		zap.String("client_id", c.id),
		zap.String("role", string(c.role)),
		zap.Int("connections", remaining))

	if remaining > 0 {
		h.broadcast(r, c, ClientDisconnectedMessage{Type: TypeClientDisconnected, Role: c.role}, nil)
	}
}

// Handle processes one inbound frame from c. Bad frames are answered with an
// error message and never close the connection.
func (h *Hub) Handle(c *Client, raw []byte) {
	msg, err := ParseInbound(raw)
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			verr = invalid(CodeMalformedMessage, "%v", err)
		}
		h.reject(c, verr)
		return
	}

	switch m := msg.(type) {
	case LocationUpdate:
		if c.role != RoleDriver {
			h.reject(c, invalid(CodeForbidden, "only drivers may send location updates"))
			return
		}
		h.relayLocation(c, m)
	case Ping:
		h.sendTo(c, PongMessage{Type: TypePong, Time: h.now()})
	case ETARequest:
		if c.role != RoleObserver {
			h.reject(c, invalid(CodeForbidden, "only observers may request an eta"))
			return
		}
		if r := h.room(c.trackingID); r != nil {
			h.broadcast(r, c, ETARequestMessage{Type: TypeETARequest, ClientID: c.id}, nil)
		}
	}
}

// SendETA delivers an estimate to a single observer.
func (h *Hub) SendETA(c *Client, est eta.Estimate) {
	h.sendTo(c, ETAUpdateMessage{Type: TypeETAUpdate, Estimate: est})
}

func (h *Hub) Room(trackingID string) (RoomStats, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[trackingID]
	if !ok {
		return RoomStats{}, false
	}
	members := lo.Keys(r.clients)
	drivers := lo.CountBy(members, func(c *Client) bool { return c.role == RoleDriver })
	return RoomStats{
		TrackingID:  r.id,
		Connections: len(members),
		Drivers:     drivers,
		Observers:   len(members) - drivers,
		CreatedAt:   r.createdAt,
	}, true
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Flush waits for in-flight publisher calls.
func (h *Hub) Flush() {
	h.publishing.Wait()
}

func (h *Hub) relayLocation(c *Client, m LocationUpdate) {
	r := h.room(c.trackingID)
	if r == nil {
		return
	}

	ts := h.now()
	if m.Timestamp != nil {
		ts = *m.Timestamp
	}
	out := DriverLocationMessage{
		Type:       TypeDriverLocation,
		TrackingID: c.trackingID,
		Lat:        m.Point.Lat,
		Lng:        m.Point.Lng,
		Heading:    m.Heading,
		Speed:      m.Speed,
		Accuracy:   m.Accuracy,
		Timestamp:  ts,
	}
	h.broadcast(r, c, out, &m.Point)
	h.sendTo(c, AckMessage{Type: TypeAck, Timestamp: h.now()})

	h.publish(Sample{
		TrackingID: c.trackingID,
		Lat:        m.Point.Lat,
		Lng:        m.Point.Lng,
		Heading:    m.Heading,
		Speed:      m.Speed,
		Accuracy:   m.Accuracy,
		Timestamp:  ts,
	})
}

func (h *Hub) room(trackingID string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[trackingID]
}

func (h *Hub) members(r *room, except *Client) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Filter(lo.Keys(r.clients), func(c *Client, _ int) bool { return c != except })
}

// broadcast delivers msg to every member of r other than sender. Each
// recipient gets its own bounded send so a stalled one cannot hold up the
// rest. pos, when set, is also handed to the recipients' location observers.
func (h *Hub) broadcast(r *room, sender *Client, msg any, pos *geo.Point) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode broadcast", zap.Error(err))
		return
	}

	r.fanout.Lock()
	defer r.fanout.Unlock()

	recipients := h.members(r, sender)
	var wg sync.WaitGroup
	for _, rc := range recipients {
		wg.Add(1)
		go func(rc *Client) {
			defer wg.Done()
			if !rc.enqueue(payload, h.sendTimeout) {
				if !rc.closed() {
					h.log.Warn("dropped message for slow client",
						zap.String("tracking_id", r.id),
						zap.String("client_id", rc.id))
				}
				return
			}
			if pos != nil && rc.onLocation != nil {
				rc.onLocation(*pos)
			}
		}(rc)
	}
	wg.Wait()
}

func (h *Hub) sendTo(c *Client, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode message", zap.Error(err))
		return
	}
	if !c.enqueue(payload, h.sendTimeout) && !c.closed() {
		h.log.Warn("dropped message for slow client",
			zap.String("tracking_id", c.trackingID),
			zap.String("client_id", c.id))
	}
}

func (h *Hub) reject(c *Client, err *ValidationError) {
	h.log.Debug("rejected message",
		zap.String("tracking_id", c.trackingID),
		zap.String("client_id", c.id),
		zap.String("code", err.Code),
		zap.String("reason", err.Message))
	h.sendTo(c, errorMessage(err))
}

func (h *Hub) publish(s Sample) {
	for _, p := range h.publishers {
		h.publishing.Add(1)
		go func(p LocationPublisher) {
			defer h.publishing.Done()
			ctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
			defer cancel()
			if err := p.PublishLocation(ctx, s); err != nil {
				h.log.Warn("publish location",
					zap.String("tracking_id", s.TrackingID),
					zap.Error(err))
			}
		}(p)
	}
}
