package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisPublisherPublishesSample(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, LocationChannel("ride:1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub := NewRedisPublisher(client)
	sample := Sample{TrackingID: "ride:1", Lat: 1, Lng: 2, Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	if err := pub.PublishLocation(ctx, sample); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Channel != "tracking:ride:1:location" {
			t.Fatalf("unexpected channel %s", msg.Channel)
		}
		var got Sample
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Lat != 1 || got.Lng != 2 || got.TrackingID != "ride:1" {
			t.Fatalf("unexpected sample %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for published sample")
	}
}

func TestRedisPublisherError(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	s.Close()
	defer client.Close()

	err := NewRedisPublisher(client).PublishLocation(context.Background(), Sample{TrackingID: "ride:1"})
	if err == nil {
		t.Fatalf("expected error when redis is down")
	}
}

func TestHubWithRedisPublisher(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, LocationChannel("batch:2"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	hub := NewHub(WithPublishers(NewRedisPublisher(client)))
	driver, err := hub.Join("batch:2", RoleDriver)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	hub.Handle(driver, []byte(`{"type":"location_update","lat":5,"lng":6}`))
	hub.Flush()

	select {
	case msg := <-sub.Channel():
		if msg.Payload == "" {
			t.Fatalf("empty payload")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for redis message")
	}
}
