package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"backend-rxdispatch/internal/eta"
	"backend-rxdispatch/internal/logging"
	"backend-rxdispatch/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	localTrackingID  = "stream.tracking_id"
	localRole        = "stream.role"
	localDestination = "stream.destination"
)

type HandlerOptions struct {
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	// Router enables eta_update for observers that pass dest_lat/dest_lng.
	Router    eta.Router
	ETAPolicy eta.Policy
	Logger    *zap.Logger
}

// TrackingID namespaces ride and batch ids so they never share a room.
func TrackingID(kind, id string) (string, error) {
	if id == "" {
		return "", ErrInvalidTrackingID
	}
	switch kind {
	case "ride", "batch":
		return kind + ":" + id, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidTrackingID, kind)
}

func RegisterRoutes(r fiber.Router, hub *Hub, opts HandlerOptions) {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	log := logging.OrNop(opts.Logger)

	r.Get("/ws", upgradeGuard(hub), websocket.New(func(conn *websocket.Conn) {
		serveConn(conn, hub, opts, log)
	}))
	r.Get("/rooms/:kind/:id", func(c *fiber.Ctx) error {
		id, err := TrackingID(c.Params("kind"), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		stats, ok := hub.Room(id)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "room not found")
		}
		return c.JSON(stats)
	})
}

// upgradeGuard validates the query before the protocol switch so bad
// requests get a plain HTTP error.
func upgradeGuard(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rideID, batchID := c.Query("ride_id"), c.Query("batch_id")
		var (
			trackingID string
			err        error
		)
		switch {
		case rideID != "" && batchID != "":
			return fiber.NewError(fiber.StatusBadRequest, "only one of ride_id or batch_id is allowed")
		case rideID != "":
			trackingID, err = TrackingID("ride", rideID)
		case batchID != "":
			trackingID, err = TrackingID("batch", batchID)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "ride_id or batch_id is required")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		role, ok := ParseRole(c.Query("role"))
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "role must be driver or customer")
		}

		dest, hasDest, err := destinationFromQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if stats, ok := hub.Room(trackingID); ok && stats.Connections >= hub.capacity {
			return fiber.NewError(fiber.StatusServiceUnavailable, ErrRoomFull.Error())
		}

		c.Locals(localTrackingID, trackingID)
		c.Locals(localRole, role)
		if hasDest {
			c.Locals(localDestination, dest)
		}
		return c.Next()
	}
}

func destinationFromQuery(c *fiber.Ctx) (geo.Point, bool, error) {
	latRaw, lngRaw := c.Query("dest_lat"), c.Query("dest_lng")
	if latRaw == "" && lngRaw == "" {
		return geo.Point{}, false, nil
	}
	if latRaw == "" || lngRaw == "" {
		return geo.Point{}, false, fmt.Errorf("dest_lat and dest_lng must be given together")
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("invalid dest_lat")
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("invalid dest_lng")
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return geo.Point{}, false, fmt.Errorf("destination out of range")
	}
	return p, true, nil
}

func serveConn(conn *websocket.Conn, hub *Hub, opts HandlerOptions, log *zap.Logger) {
	trackingID, _ := conn.Locals(localTrackingID).(string)
	role, _ := conn.Locals(localRole).(Role)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		client   *Client
		session  *eta.Session
		joinOpts []JoinOption
	)
	if dest, ok := conn.Locals(localDestination).(geo.Point); ok && role == RoleObserver && opts.Router != nil {
		engine := eta.NewEngine(opts.Router, dest, opts.ETAPolicy,
			eta.WithLogger(log.With(zap.String("tracking_id", trackingID))))
		session = eta.NewSession(engine, func(est eta.Estimate) { hub.SendETA(client, est) })
		joinOpts = append(joinOpts, WithLocationObserver(session.Offer))
	}

	client, err := hub.Join(trackingID, role, joinOpts...)
	if err != nil {
		payload, _ := json.Marshal(ErrorMessage{Type: TypeError, Code: CodeRoomFull, Message: err.Error()})
		_ = conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "room full"))
		return
	}
	defer hub.Leave(client)

	if session != nil {
		go session.Run(ctx)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeLoop(conn, client, opts.WriteTimeout, log)
	}()

	for {
		if opts.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("connection closed",
				zap.String("tracking_id", trackingID),
				zap.String("client_id", client.ID()),
				zap.Error(err))
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		hub.Handle(client, data)
	}

	hub.Leave(client)
	<-writerDone
}

func writeLoop(conn *websocket.Conn, client *Client, timeout time.Duration, log *zap.Logger) {
	for {
		select {
		case <-client.Done():
			return
		case msg := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug("write failed",
					zap.String("tracking_id", client.TrackingID()),
					zap.String("client_id", client.ID()),
					zap.Error(err))
				// unblocks the reader so the close path runs
				_ = conn.Close()
				return
			}
		}
	}
}
