package monitor

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// Watch dials the monitor websocket at url and calls fn for every event
// until ctx is done or the server closes the feed.
func Watch(ctx context.Context, url string, fn func(Event)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to monitor: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var e Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read monitor event: %w", err)
		}
		fn(e)
	}
}
