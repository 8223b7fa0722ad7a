package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quantumhub.game/internal/hub"
	"quantumhub.game/internal/protocol"
)

type Server struct {
	hub *hub.Hub
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h *hub.Hub, logger *log.Logger) *Server {
	s := &Server{
		hub: h,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				enqueueError(out, protocol.ErrProtoBadRequest, "malformed message")
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				enqueueError(out, protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			switch base.Type {
			case protocol.TypeInput:
				var in protocol.InputMsg
				if err := json.Unmarshal(msg, &in); err != nil {
					enqueueError(out, protocol.ErrProtoBadRequest, "malformed INPUT")
					continue
				}
				s.hub.Inbox() <- hub.CommandEnvelope{SessionID: sessionID, Input: &in}
			case protocol.TypeProgress:
				var pg protocol.ProgressMsg
				if err := json.Unmarshal(msg, &pg); err != nil {
					enqueueError(out, protocol.ErrProtoBadRequest, "malformed PROGRESS")
					continue
				}
				s.hub.Inbox() <- hub.CommandEnvelope{SessionID: sessionID, Progress: &pg}
			}
		}

		// Cleanup.
		s.hub.Leave() <- sessionID
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWithError(conn, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWithError(conn, "malformed HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWithError(conn, "bad protocol_version")
		return "", nil
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	token := ""
	if hello.Auth != nil {
		token = hello.Auth.Token
	}

	respCh := make(chan hub.JoinResponse, 1)
	s.hub.Join() <- hub.JoinRequest{
		Name:  hello.PlayerName,
		Token: token,
		Out:   out,
		Resp:  respCh,
	}
	resp := <-respCh
	if resp.Err != nil || resp.Welcome.SessionID == "" {
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		// The join is already registered; reap the session or it would be
		// stepped forever with nobody reading.
		s.hub.Leave() <- resp.Welcome.SessionID
		return "", nil
	}

	return resp.Welcome.SessionID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// closeWithError reports a handshake rejection as an ERROR message followed
// by a policy-violation close frame.
func closeWithError(conn *websocket.Conn, message string) {
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrProtoBadRequest,
		Message:         message,
	})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(time.Second))
}

// enqueueError hands an ERROR message to the writer goroutine. Advisory: a
// saturated queue drops it rather than stall the reader.
func enqueueError(out chan []byte, code, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}
