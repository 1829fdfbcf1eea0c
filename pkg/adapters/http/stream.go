package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/batonlabs/baton/pkg/domain"
)

// TurnMessage is the SSE payload broadcast for each newly recorded turn.
type TurnMessage struct {
	SessionID   string `json:"session_id"`
	Index       int    `json:"index"`
	Participant string `json:"participant"`
	Text        string `json:"text,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`
	Status      string `json:"status"`
	Current     string `json:"current"`
	Reason      string `json:"reason,omitempty"`
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // sessionID -> set of channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

func (sm *StreamManager) Subscribe(sessionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if subs, ok := sm.subscribers[sessionID]; ok {
		for ch := range subs {
			select {
			case ch <- msg:
			default:
				// Drop message if the channel is full (slow client).
			}
		}
	}
}

// broadcastTurns pushes every turn recorded since prevTurns to subscribers.
func (s *Server) broadcastTurns(sessionID string, state *domain.State, prevTurns int) {
	for _, turn := range state.Turns[prevTurns:] {
		msg := TurnMessage{
			SessionID:   state.SessionID,
			Index:       turn.Index,
			Participant: turn.Participant,
			Text:        turn.Output.Text,
			IsError:     turn.Output.IsError(),
			Status:      string(state.Status),
			Current:     state.Current,
			Reason:      state.Reason,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		s.streams.Broadcast(sessionID, string(data))
	}
}

// subscribeEvents handles GET /events (SSE). A session_id query parameter
// is required; each newly recorded turn arrives as one data frame.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id query parameter is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: subscribing to session updates", "session_id", sessionID)

	ch, cancel := s.streams.Subscribe(sessionID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
