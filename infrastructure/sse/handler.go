package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
)

const eventTypeConnected = "connected"

// Handler streams broker events to the client until it disconnects or the
// broker closes.
func Handler(b *Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, unsubscribe, err := b.Subscribe()
		if err != nil {
			status := http.StatusServiceUnavailable
			if errors.Is(err, ErrBrokerClosed) {
				status = http.StatusGone
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		defer unsubscribe()

		SetHeaders(c.Writer)
		c.Status(http.StatusOK)

		connected := Event{
			Type: eventTypeConnected,
			Data: gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)},
		}
		if writeErr := writeEvent(c.Writer, connected); writeErr != nil {
			b.log.Debug("SSE write failed", logger.Error(writeErr))
			return
		}

		ticker := time.NewTicker(b.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if writeErr := writeEvent(c.Writer, event); writeErr != nil {
					b.log.Debug("SSE write failed (client likely disconnected)",
						logger.Error(writeErr),
						logger.String("event_type", event.Type),
					)
					return
				}
			case <-ticker.C:
				if _, writeErr := fmt.Fprintf(c.Writer, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339)); writeErr != nil {
					return
				}
				c.Writer.Flush()
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}

// SetHeaders sets the standard SSE headers on a response writer.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteEvent writes event in wire format.
func WriteEvent(w io.Writer, event Event) error {
	if event.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
			return fmt.Errorf("write event type: %w", err)
		}
	}
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return fmt.Errorf("write event id: %w", err)
		}
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err = fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}
	return nil
}

func writeEvent(w gin.ResponseWriter, event Event) error {
	if err := WriteEvent(w, event); err != nil {
		return err
	}
	w.Flush()
	return nil
}
