package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"illusion-quiz-service/internal/app"
)

// WSHandler streams live community stats for one question: the current
// aggregate on connect, then a fresh one whenever a vote lands. Clients may
// also submit their own vote over the same connection.
type WSHandler struct {
	votes    *app.VoteService
	upgrader websocket.Upgrader
}

func NewWSHandler(votes *app.VoteService) *WSHandler {
	return &WSHandler{
		votes: votes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type votePayload struct {
	Guess    int    `json:"guess"`
	Locale   string `json:"locale"`
	CohortID string `json:"cohortId,omitempty"`
}

type voteResult struct {
	Status app.SubmitStatus `json:"status"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the live
// stats feed.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	questionID := r.URL.Query().Get("questionId")
	fingerprint := r.URL.Query().Get("fingerprint")
	if questionID == "" {
		http.Error(w, "missing questionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.votes.Subscribe(r.Context(), questionID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "stats", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "vote":
			var payload votePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid vote payload"}}
				continue
			}
			status, err := h.votes.SubmitVote(r.Context(), questionID, fingerprint, payload.Guess, payload.Locale, payload.CohortID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "voteResult", Payload: voteResult{Status: status}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
