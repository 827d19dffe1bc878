package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

func clientInfo(r *http.Request, transport string) stream.ClientInfo {
	return stream.ClientInfo{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Transport: transport,
		Address:   r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// handleWebSocket upgrades GET /stream?streamId=…[&codec=msgpack] and keeps
// the viewer subscribed until either side closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	streamID := r.URL.Query().Get("streamId")
	if streamID == "" {
		s.Fail(w, r, derrors.ValidationError("streamId query parameter is required").WithKind(derrors.KindStream).Build())
		return
	}
	codec, err := stream.CodecByName(r.URL.Query().Get("codec"))
	if err != nil {
		s.Fail(w, r, derrors.ValidationError(err.Error()).WithKind(derrors.KindStream).Build())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered
		s.logger.Warn("WebSocket upgrade failed", logfields.RemoteAddr(r.RemoteAddr), logfields.Error(err))
		return
	}
	tr := stream.NewWebSocketTransport(conn, codec)
	info := clientInfo(r, "websocket")
	sub, err := s.hub.Subscribe(streamID, info, tr)
	if err != nil {
		payload, _ := json.Marshal(s.adapter.FormatErrorResponse(err))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		_ = tr.Close()
		return
	}

	readErr := tr.ReadLoop(func() { s.hub.Ack(sub.ClientID) })
	select {
	case <-tr.Done():
	default:
		s.logger.Debug("Viewer connection closed", logfields.ClientID(sub.ClientID), logfields.Error(readErr))
		s.hub.Disconnect(sub.ClientID)
	}
}

// handleSSE streams GET /events/{streamId} as Server-Sent Events.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamId")
	if streamID == "" {
		s.Fail(w, r, derrors.ValidationError("missing stream id").WithKind(derrors.KindStream).Build())
		return
	}
	tr, err := stream.NewSSETransport(w)
	if err != nil {
		s.Fail(w, r, derrors.StreamError("streaming unsupported").WithCause(err).Build())
		return
	}
	sub, err := s.hub.Subscribe(streamID, clientInfo(r, "sse"), tr)
	if err != nil {
		// headers are already out; report the failure as a terminal event
		_ = tr.Send(r.Context(), stream.NewMessage(stream.EventError, streamID, stream.ErrorData{
			Code:    derrors.KindOf(err).Code(),
			Message: err.Error(),
			Phase:   "subscribe",
		}))
		_ = tr.Close()
		return
	}

	select {
	case <-tr.Done():
	case <-r.Context().Done():
		s.hub.Disconnect(sub.ClientID)
		<-tr.Done()
	}
}
