package server

import (
	"context"
	"encoding/json"
	"log"
)

// Event type constants prevent typos in event names.
const (
	EventPostCreated    = "post_created"
	EventCommentCreated = "comment_created"
)

// publishBroadcastEvent fans an event out to every connected reader, locally
// and across instances via Redis when a notifier is wired. The realtime_events
// flag acts as a kill switch; fan-out is on when unset.
func (s *Server) publishBroadcastEvent(eventType string, payload map[string]interface{}) {
	if !s.flags.EnabledDefault("realtime_events", 0, true) {
		return
	}
	event := map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return
	}
	message := string(eventJSON)

	// With a distributed notifier the local hub receives the event back via
	// the subscription; broadcast locally only when running without Redis.
	if s.notifier != nil {
		if err := s.notifier.PublishBroadcast(context.Background(), message); err != nil {
			log.Printf("failed to publish %s broadcast event: %v", eventType, err)
		}
		return
	}
	if s.hub != nil {
		s.hub.BroadcastAll(message)
	}
}
