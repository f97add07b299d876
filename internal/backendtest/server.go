// Package backendtest is an in-process fake of the SwapSphere marketplace
// backend: the REST deal-room API plus the realtime socket gateway. It
// exists so the engine's network paths can be exercised end to end in tests
// without a deployed server. Behavior mirrors the production contract; it is
// not a reference implementation of the server's persistence.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/NaveedAfraz/swapsphere-sync/internal/dealroom"
	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/internal/identity"
	"github.com/NaveedAfraz/swapsphere-sync/internal/protocol"
)

// Server is the fake backend. All state lives behind one mutex; every
// mutation broadcasts the same events the production gateway would push.
type Server struct {
	mu sync.Mutex

	rooms        map[string]*domain.DealRoom
	messages     map[string][]domain.Message // room id -> ordered
	offers       map[string]*domain.Offer
	auctions     map[string]*domain.Auction
	auctionRooms map[string]string // room id -> auction id
	bids         map[string][]domain.Bid
	participants map[string][]domain.Participant

	conns map[*conn]struct{}

	httpServer *httptest.Server
	upgrader   websocket.Upgrader
}

type conn struct {
	ws      *websocket.Conn
	userID  string
	writeMu sync.Mutex
	joined  map[string]struct{}
}

func New() *Server {
	s := &Server{
		rooms:        make(map[string]*domain.DealRoom),
		messages:     make(map[string][]domain.Message),
		offers:       make(map[string]*domain.Offer),
		auctions:     make(map[string]*domain.Auction),
		auctionRooms: make(map[string]string),
		bids:         make(map[string][]domain.Bid),
		participants: make(map[string][]domain.Participant),
		conns:        make(map[*conn]struct{}),
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/deal-rooms", s.listRooms)
	r.GET("/deal-rooms/:id", s.getRoom)
	r.PATCH("/deal-rooms/:id/state", s.updateRoomState)
	r.POST("/deal-rooms/:id/payment", s.confirmPayment)
	r.GET("/messages/:roomID", s.listMessages)
	r.POST("/messages/:roomID", s.postMessage)
	r.PATCH("/messages/:roomID/read", s.markRead)
	r.GET("/offer/:id", s.getOffer)
	r.POST("/offer", s.createOffer)
	r.POST("/offer/:id/:action", s.offerAction)
	r.POST("/auctions/:id/bids", s.placeBid)
	r.GET("/ws", s.serveWS)

	s.httpServer = httptest.NewServer(r)
	return s
}

// URL is the REST base URL.
func (s *Server) URL() string { return s.httpServer.URL }

// SocketURL is the gateway endpoint in ws scheme.
func (s *Server) SocketURL() string {
	return "ws" + s.httpServer.URL[len("http"):] + "/ws"
}

func (s *Server) Close() {
	s.mu.Lock()
	for c := range s.conns {
		c.ws.Close()
	}
	s.mu.Unlock()
	s.httpServer.Close()
}

// Token mints a bearer credential for userID the way the auth service does.
func Token(userID string) string {
	claims := jwt.MapClaims{"user_id": userID, "exp": time.Now().Add(time.Hour).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("backendtest"))
	if err != nil {
		panic(err)
	}
	return signed
}

// Seed helpers load fixture state before a test drives the engine.

func (s *Server) SeedRoom(room domain.DealRoom) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := room
	s.rooms[room.ID] = &cp
}

func (s *Server) SeedMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.DealRoomID] = append(s.messages[msg.DealRoomID], msg)
}

func (s *Server) SeedOffer(o domain.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := o
	s.offers[o.ID] = &cp
}

func (s *Server) SeedAuction(a domain.Auction, roster []domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a
	s.auctions[a.ID] = &cp
	s.auctionRooms[a.DealRoomID] = a.ID
	s.participants[a.ID] = append([]domain.Participant(nil), roster...)
}

// Broadcast pushes an arbitrary event to every connection joined to the
// room, letting tests simulate server-originated pushes.
func (s *Server) Broadcast(env protocol.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(env)
}

func (s *Server) broadcastLocked(env protocol.Envelope) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now()
	}
	for c := range s.conns {
		if _, ok := c.joined[env.RoomID]; !ok {
			continue
		}
		c.writeMu.Lock()
		c.ws.WriteJSON(env)
		c.writeMu.Unlock()
	}
}

func (s *Server) userFrom(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return "", false
	}
	userID, err := identity.UserIDFromToken(header[len(prefix):])
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
		return "", false
	}
	return userID, true
}

func (s *Server) listRooms(c *gin.Context) {
	if _, ok := s.userFrom(c); !ok {
		return
	}
	s.mu.Lock()
	out := make([]domain.DealRoom, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, *room)
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) getRoom(c *gin.Context) {
	if _, ok := s.userFrom(c); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "deal room not found"})
		return
	}
	snap := gin.H{"room": room}
	if auctionID, ok := s.auctionRooms[room.ID]; ok {
		snap["auction"] = s.auctions[auctionID]
		snap["bids"] = s.bids[auctionID]
		snap["participants"] = s.participants[auctionID]
	}
	for _, o := range s.offers {
		if o.DealRoomID == room.ID && !o.Status.IsTerminal() {
			snap["offer"] = o
			break
		}
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) updateRoomState(c *gin.Context) {
	if _, ok := s.userFrom(c); !ok {
		return
	}
	var req struct {
		State    domain.RoomState       `json:"state"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	room, ok := s.rooms[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "deal room not found"})
		return
	}
	next, err := dealroom.Transition(room, req.State, req.Metadata, time.Now())
	if err != nil {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.rooms[room.ID] = next
	s.pushRoomLocked(next)
	out := *next
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) confirmPayment(c *gin.Context) {
	if _, ok := s.userFrom(c); !ok {
		return
	}
	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing order id"})
		return
	}

	s.mu.Lock()
	room, ok := s.rooms[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "deal room not found"})
		return
	}
	next, err := dealroom.Transition(room, domain.RoomPaymentCompleted, nil, time.Now())
	if err != nil {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	next.PaymentOrderID = req.OrderID
	next.PaymentCompleted = true
	s.rooms[room.ID] = next
	s.pushRoomLocked(next)
	out := *next
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) pushRoomLocked(room *domain.DealRoom) {
	env, err := protocol.NewEnvelope(protocol.EventDealStateChanged, room.ID, protocol.DealStateChangedPayload{Room: *room})
	if err == nil {
		s.broadcastLocked(env)
	}
}

func (s *Server) listMessages(c *gin.Context) {
	if _, ok := s.userFrom(c); !ok {
		return
	}
	s.mu.Lock()
	out := append([]domain.Message(nil), s.messages[c.Param("roomID")]...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) postMessage(c *gin.Context) {
	userID, ok := s.userFrom(c)
	if !ok {
		return
	}
	var req struct {
		Body      string `json:"body"`
		ClientRef string `json:"client_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message body"})
		return
	}

	s.mu.Lock()
	msg := s.appendMessageLocked(c.Param("roomID"), userID, req.Body, req.ClientRef)
	s.mu.Unlock()
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) appendMessageLocked(roomID, senderID, body, clientRef string) domain.Message {
	msg := domain.Message{
		ID:         uuid.NewString(),
		DealRoomID: roomID,
		SenderID:   senderID,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	if room, ok := s.rooms[roomID]; ok {
		b := msg.Body
		at := msg.CreatedAt
		room.LastMessage = &b
		room.LastMessageAt = &at
	}
	env, err := protocol.NewEnvelope(protocol.EventNewMessage, roomID, protocol.NewMessagePayload{Message: msg, ClientRef: clientRef})
	if err == nil {
		s.broadcastLocked(env)
	}
	return msg
}

func (s *Server) markRead(c *gin.Context) {
	userID, ok := s.userFrom(c)
	if !ok {
		return
	}
	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	c.ShouldBindJSON(&req)

	roomID := c.Param("roomID")
	s.mu.Lock()
	s.markReadLocked(roomID, userID, req.MessageIDs)
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) markReadLocked(roomID, readerID string, ids []string) {
	msgs := s.messages[roomID]
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := range msgs {
		if len(ids) == 0 {
			msgs[i].IsRead = true
		} else if _, ok := want[msgs[i].ID]; ok {
			msgs[i].IsRead = true
		}
	}
	env, err := protocol.NewEnvelope(protocol.EventMessagesRead, roomID, protocol.MessagesReadPayload{ReaderID: readerID, MessageIDs: ids})
	if err == nil {
		s.broadcastLocked(env)
	}
}
