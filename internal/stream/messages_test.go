package stream

import (
	"errors"
	"testing"
	"time"

	"backend-rxdispatch/internal/shared/geo"

	"github.com/google/go-cmp/cmp"
)

func TestParseInbound(t *testing.T) {
	ts := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	heading := 180.0

	tests := []struct {
		name string
		raw  string
		want Inbound
		code string
	}{
		{name: "ping", raw: `{"type":"ping"}`, want: Ping{}},
		{name: "eta request", raw: `{"type":"eta_request","extra":true}`, want: ETARequest{}},
		{
			name: "location",
			raw:  `{"type":"location_update","lat":1.5,"lng":-2.5,"heading":180,"timestamp":"2026-03-01T08:30:00Z","battery":80}`,
			want: LocationUpdate{Point: geo.Point{Lat: 1.5, Lng: -2.5}, Heading: &heading, Timestamp: &ts},
		},
		{name: "empty", raw: ``, code: CodeMalformedMessage},
		{name: "array", raw: `[1,2]`, code: CodeMalformedMessage},
		{name: "broken json", raw: `{"type":`, code: CodeMalformedMessage},
		{name: "missing type", raw: `{"lat":1}`, code: CodeMalformedMessage},
		{name: "type not a string", raw: `{"type":5}`, code: CodeMalformedMessage},
		{name: "unknown type", raw: `{"type":"driver_location"}`, code: CodeUnknownType},
		{name: "missing lng", raw: `{"type":"location_update","lat":1}`, code: CodeInvalidLocation},
		{name: "string lat", raw: `{"type":"location_update","lat":"1","lng":2}`, code: CodeInvalidLocation},
		{name: "null lat", raw: `{"type":"location_update","lat":null,"lng":2}`, code: CodeInvalidLocation},
		{name: "lng out of range", raw: `{"type":"location_update","lat":1,"lng":181}`, code: CodeInvalidLocation},
		{
			name: "epoch millis timestamp",
			raw:  `{"type":"location_update","lat":40.1,"lng":-3.7,"timestamp":1772353800000}`,
			want: LocationUpdate{Point: geo.Point{Lat: 40.1, Lng: -3.7}, Timestamp: &ts},
		},
		{
			name: "unparseable timestamp dropped",
			raw:  `{"type":"location_update","lat":1,"lng":2,"timestamp":"yesterday"}`,
			want: LocationUpdate{Point: geo.Point{Lat: 1, Lng: 2}},
		},
		{
			name: "wrongly typed optionals dropped",
			raw:  `{"type":"location_update","lat":1,"lng":2,"heading":"north","speed":null,"accuracy":{"m":3}}`,
			want: LocationUpdate{Point: geo.Point{Lat: 1, Lng: 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInbound([]byte(tt.raw))
			if tt.code != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if verr.Code != tt.code {
					t.Fatalf("expected code %s, got %s", tt.code, verr.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"driver":     RoleDriver,
		"customer":   RoleObserver,
		"observer":   RoleObserver,
		"dispatcher": RoleObserver,
	} {
		got, ok := ParseRole(in)
		if !ok || got != want {
			t.Fatalf("ParseRole(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseRole("admin"); ok {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestTrackingID(t *testing.T) {
	id, err := TrackingID("ride", "42")
	if err != nil || id != "ride:42" {
		t.Fatalf("unexpected id %q %v", id, err)
	}
	id, err = TrackingID("batch", "42")
	if err != nil || id != "batch:42" {
		t.Fatalf("unexpected id %q %v", id, err)
	}
	if _, err := TrackingID("trip", "42"); !errors.Is(err, ErrInvalidTrackingID) {
		t.Fatalf("expected invalid tracking id, got %v", err)
	}
	if _, err := TrackingID("ride", ""); !errors.Is(err, ErrInvalidTrackingID) {
		t.Fatalf("expected invalid tracking id, got %v", err)
	}
}
