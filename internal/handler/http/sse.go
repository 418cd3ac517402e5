package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/pkg/observable"
)

// heartbeatInterval keeps idle event streams open through proxies.
const heartbeatInterval = 15 * time.Second

// streamBuffer is how many undelivered updates a slow client may lag
// behind. When it is full the oldest update is dropped; snapshots are
// complete, so the client only ever needs the latest one.
const streamBuffer = 16

// stream writes every value published on v as a server-sent event until
// the client goes away. With initial set the current value is sent first.
func stream[T any](w http.ResponseWriter, r *http.Request, v *observable.Value[T], event string, initial bool, logger *slog.Logger) {
	updates := make(chan T, streamBuffer)
	unsubscribe := v.Subscribe(func(val T) {
		for {
			select {
			case updates <- val:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	send := func(val T) bool {
		data, err := json.Marshal(val)
		if err != nil {
			logger.ErrorContext(r.Context(), "encode event", slog.String("event", event), slog.String("error", err.Error()))
			return true
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if initial {
		if !send(v.Get()) {
			return
		}
	} else if rc.Flush() != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case val := <-updates:
			if !send(val) {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}
