package api

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/autotrack/autotrack/internal/metrics"
)

// stream serves the realtime feed as server-sent events. Each event carries
// the same payload shape downstream consumers already parse:
// {"type":"new_vehicle","vehicle":{...}}.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := s.hub.Subscribe()
	defer func() {
		s.hub.Unsubscribe(sub)
		metrics.SetStreamClients(s.hub.ClientCount())
	}()
	metrics.SetStreamClients(s.hub.ClientCount())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.C:
			if !open {
				return
			}
			payload, err := evt.Marshal()
			if err != nil {
				s.logger.Warn("stream event marshal failed", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
