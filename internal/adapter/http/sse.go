package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/service"
)

// SSEHandler streams status transitions for a video as server-sent events so
// an uploader can follow the transcode without polling.
type SSEHandler struct {
	eventBus *service.EventBus
	videoSvc VideoService
}

func NewSSEHandler(eventBus *service.EventBus, videoSvc VideoService) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		videoSvc: videoSvc,
	}
}

type statusEvent struct {
	Status               domain.VideoStatus `json:"status"`
	Message              string             `json:"message,omitempty"`
	AvailableResolutions []string           `json:"available_resolutions,omitempty"`
}

// sseWrite writes one SSE event with a JSON payload.
func sseWrite(w http.ResponseWriter, eventName string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func terminal(status domain.VideoStatus) bool {
	return status == domain.VideoStatusFinished || status == domain.VideoStatusError
}

// Events handles GET /api/videos/{id}/events for the video's owner. The
// current state is sent immediately; the stream ends after a terminal status.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		id := r.PathValue("id")

		// Subscribe before reading the snapshot so a transition landing
		// between the two is buffered rather than missed.
		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		video, err := h.videoSvc.Get(user.ID, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		sseWrite(w, "status", statusEvent{
			Status:               video.Status,
			Message:              video.ErrorMessage,
			AvailableResolutions: video.AvailableResolutions,
		})
		if terminal(video.Status) {
			return
		}

		ctx := r.Context()
		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				// Re-fetch so terminal events carry the final record.
				payload := statusEvent{Status: event.Status, Message: event.Message}
				if current, err := h.videoSvc.Get(user.ID, id); err == nil {
					payload.AvailableResolutions = current.AvailableResolutions
				}
				sseWrite(w, "status", payload)
				if terminal(event.Status) {
					return
				}
			}
		}
	}
}
