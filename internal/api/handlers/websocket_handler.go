package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/pipeline"
	"github.com/service-agreement/backend/pkg/logger"
)

// WebSocketHandler runs one pipeline.Session per connection. Flows execute in
// the background so the session can reject a second request while one is in
// flight.
type WebSocketHandler struct {
	flows    pipeline.Flows
	selector pipeline.KbSelector
	kbLimit  int
}

func NewWebSocketHandler(flows pipeline.Flows, selector pipeline.KbSelector, kbLimit int) *WebSocketHandler {
	return &WebSocketHandler{flows: flows, selector: selector, kbLimit: kbLimit}
}

type wsRequest struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Request   string `json:"request,omitempty"`
	Data      any    `json:"data,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

type wsGenerate struct {
	Brief       *contract.Brief           `json:"brief,omitempty"`
	Options     *contract.GenerateOptions `json:"options,omitempty"`
	KbItems     []contract.KbItem         `json:"kb_items,omitempty"`
	ExtraTopics []string                  `json:"extra_topics,omitempty"`
}

type wsOptimize struct {
	ClauseID string `json:"clause_id"`
	UserNote string `json:"user_note"`
}

// wsConn serializes writes from the read loop and the flow goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(msg wsResponse) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(msg); err != nil {
		logger.Warn("Failed to write WebSocket message", zap.Error(err))
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket session opened")

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		_ = c.Close()
		logger.Info("WebSocket session closed")
	}()

	session := pipeline.NewSession(h.flows, h.selector, h.kbLimit)
	out := &wsConn{conn: c}

	for {
		var msg wsRequest
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		run, err := h.dispatch(session, msg)
		if err != nil {
			out.send(errorMessage(msg, err))
			continue
		}
		if run == nil {
			out.send(wsResponse{Type: "result", RequestID: msg.RequestID, Request: msg.Type, Data: session.Snapshot()})
			continue
		}

		out.send(wsResponse{Type: "status", RequestID: msg.RequestID, Request: msg.Type, Message: "processing"})
		wg.Add(1)
		go func(msg wsRequest) {
			defer wg.Done()
			data, err := run(ctx)
			if err != nil {
				out.send(errorMessage(msg, err))
				return
			}
			out.send(wsResponse{Type: "result", RequestID: msg.RequestID, Request: msg.Type, Data: data})
		}(msg)
	}
}

type flowCall func(ctx context.Context) (any, error)

// dispatch decodes msg into a session call. A nil call with no error means a
// snapshot request.
func (h *WebSocketHandler) dispatch(session *pipeline.Session, msg wsRequest) (flowCall, error) {
	switch msg.Type {
	case "snapshot":
		return nil, nil
	case "describe":
		var req pipeline.IntakeRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return session.Describe(ctx, req) }, nil
	case "generate":
		var p wsGenerate
		if err := decodePayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		in := pipeline.GenerateInput{Brief: p.Brief, Options: p.Options, KbItems: p.KbItems, ExtraTopics: p.ExtraTopics}
		return func(ctx context.Context) (any, error) {
			resp, err := session.Generate(ctx, in)
			if err != nil {
				return nil, err
			}
			return generateResult{Contract: resp.Contract, KbItems: session.Snapshot().KbItems, TraceID: resp.TraceID}, nil
		}, nil
	case "optimize":
		var p wsOptimize
		if err := decodePayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return session.Optimize(ctx, p.ClauseID, p.UserNote) }, nil
	}
	return nil, &pipeline.InputError{Fields: []pipeline.FieldError{{Field: "type", Rule: "oneof", Param: "describe generate optimize snapshot"}}}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &pipeline.InputError{Fields: []pipeline.FieldError{{Field: "payload", Rule: "json"}}}
	}
	return nil
}

func errorMessage(msg wsRequest, err error) wsResponse {
	return wsResponse{
		Type:      "error",
		RequestID: msg.RequestID,
		Request:   msg.Type,
		Kind:      pipeline.KindOf(err),
		Message:   err.Error(),
		TraceID:   pipeline.TraceIDOf(err),
	}
}
