package backendtest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NaveedAfraz/swapsphere-sync/internal/dealroom"
	"github.com/NaveedAfraz/swapsphere-sync/internal/identity"
	"github.com/NaveedAfraz/swapsphere-sync/internal/protocol"
)

func (s *Server) serveWS(c *gin.Context) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	userID, err := identity.UserIDFromToken(header[len(prefix):])
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	cn := &conn{ws: ws, userID: userID, joined: make(map[string]struct{})}

	s.mu.Lock()
	s.conns[cn] = struct{}{}
	s.mu.Unlock()

	go s.readLoop(cn)
}

func (s *Server) readLoop(cn *conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, cn)
		rooms := make([]string, 0, len(cn.joined))
		for roomID := range cn.joined {
			rooms = append(rooms, roomID)
		}
		s.mu.Unlock()
		cn.ws.Close()
		for _, roomID := range rooms {
			s.pushOnlineUsers(roomID)
		}
	}()

	for {
		_, raw, err := cn.ws.ReadMessage()
		if err != nil {
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		s.handleFrame(cn, env)
	}
}

func (s *Server) handleFrame(cn *conn, env protocol.Envelope) {
	switch env.Type {
	case protocol.EventJoinDealRoom:
		s.mu.Lock()
		cn.joined[env.RoomID] = struct{}{}
		s.mu.Unlock()
		s.pushOnlineUsers(env.RoomID)

	case protocol.EventLeaveDealRoom:
		s.mu.Lock()
		delete(cn.joined, env.RoomID)
		s.mu.Unlock()
		s.pushOnlineUsers(env.RoomID)

	case protocol.EventSendMessage:
		var p protocol.SendMessagePayload
		if json.Unmarshal(env.Payload, &p) != nil || p.Body == "" {
			return
		}
		s.mu.Lock()
		s.appendMessageLocked(env.RoomID, cn.userID, p.Body, p.ClientRef)
		s.mu.Unlock()

	case protocol.EventMarkRead:
		var p protocol.MessagesReadPayload
		json.Unmarshal(env.Payload, &p)
		s.mu.Lock()
		s.markReadLocked(env.RoomID, cn.userID, p.MessageIDs)
		s.mu.Unlock()

	case protocol.EventTypingStart, protocol.EventTypingStop:
		typing := env.Type == protocol.EventTypingStart
		payload := protocol.TypingPayload{UserID: cn.userID, Typing: typing}
		out, err := protocol.NewEnvelope(protocol.EventUserTyping, env.RoomID, payload)
		if err == nil {
			s.mu.Lock()
			s.broadcastLocked(out)
			s.mu.Unlock()
		}

	case protocol.EventUpdateDealState:
		var p protocol.UpdateDealStatePayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		s.mu.Lock()
		if room, ok := s.rooms[env.RoomID]; ok {
			if next, err := dealroom.Transition(room, p.State, p.Metadata, time.Now()); err == nil {
				s.rooms[room.ID] = next
				s.pushRoomLocked(next)
			}
		}
		s.mu.Unlock()
	}
}

func (s *Server) pushOnlineUsers(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var users []string
	for c := range s.conns {
		if _, ok := c.joined[roomID]; !ok {
			continue
		}
		if _, dup := seen[c.userID]; !dup {
			seen[c.userID] = struct{}{}
			users = append(users, c.userID)
		}
	}
	env, err := protocol.NewEnvelope(protocol.EventOnlineUsers, roomID, protocol.OnlineUsersPayload{UserIDs: users})
	if err == nil {
		s.broadcastLocked(env)
	}
}
