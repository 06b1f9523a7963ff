package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/procexec/internal/events"
)

// connectedEvent is sent first on every stream, once its subscriptions are live.
type connectedEvent struct {
	Message   string `json:"message" example:"SSE connection established"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z"`
}

func newConnectedEvent() connectedEvent {
	return connectedEvent{
		Message:   "SSE connection established",
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// registerSSERoutes registers the execution lifecycle event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of process launches, state changes, kills and results",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"exec-started":       events.ExecStartedEvent{},
		"exec-state-changed": events.ExecStateChangedEvent{},
		"exec-killed":        events.ExecKilledEvent{},
		"exec-finished":      events.ExecFinishedEvent{},
		"connected":          connectedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ExecStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ExecStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ExecKilledEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ExecFinishedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(newConnectedEvent()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
