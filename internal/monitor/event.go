// Package monitor exposes a running relay over HTTP: a websocket feed of
// relay events, Prometheus metrics, and JSON snapshots of the live peers
// and the message history.
package monitor

import (
	"fmt"
	"time"

	"github.com/acmcarther/funandgames/internal/relay"
	"github.com/acmcarther/funandgames/internal/transport"
)

// EventType identifies the kind of monitor event.
type EventType string

const (
	EventJoined  EventType = "joined"
	EventCulled  EventType = "culled"
	EventMessage EventType = "message"
)

// Event is the JSON structure streamed to websocket watchers.
type Event struct {
	Type       EventType `json:"type"`
	Peer       string    `json:"peer"`
	Body       string    `json:"body,omitempty"`
	Recipients int       `json:"recipients,omitempty"`
	At         time.Time `json:"at"`
}

// FromPeerEvent converts a connection table change.
func FromPeerEvent(e transport.PeerEvent) Event {
	t := EventJoined
	if e.Kind == transport.PeerCulled {
		t = EventCulled
	}
	return Event{Type: t, Peer: e.Peer.String(), At: e.At}
}

// FromRelayed converts a relayed chat message.
func FromRelayed(r relay.Relayed) Event {
	return Event{
		Type:       EventMessage,
		Peer:       r.From.String(),
		Body:       relay.DisplayText(r.Body),
		Recipients: len(r.To),
		At:         r.At,
	}
}

func (e Event) String() string {
	ts := e.At.Format("15:04:05")
	switch e.Type {
	case EventMessage:
		return fmt.Sprintf("%s %-7s %s -> %d peers: %s", ts, e.Type, e.Peer, e.Recipients, e.Body)
	default:
		return fmt.Sprintf("%s %-7s %s", ts, e.Type, e.Peer)
	}
}
