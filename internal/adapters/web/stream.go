package web

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// streamStats relays the broadcast as server-sent events, one data frame per
// record, until the client goes away or the broadcaster closes.
func (s *server) streamStats(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	sub := s.d.Subscribe(s.d.StreamBuffer)
	defer sub.Unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Subscriber-ID", sub.ID())
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logError("stream_flush_unsupported", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-sub.C():
			if !ok {
				return
			}
			payload, err := json.Marshal(rec)
			if err != nil {
				s.logError("stream_encode_failed", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
