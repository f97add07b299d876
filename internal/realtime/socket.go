package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NaveedAfraz/swapsphere-sync/internal/metrics"
	"github.com/NaveedAfraz/swapsphere-sync/internal/protocol"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// Socket is the dial side of the persistent gateway connection. One socket is
// shared by every open room; the subscription manager owns its lifecycle.
// Disconnects trigger reconnect-with-backoff, and each successful reconnect
// fires the OnReconnect hook so rooms can rejoin and resync (the transport
// queues nothing while disconnected).
type Socket struct {
	url    string
	token  string
	dialer *websocket.Dialer
	log    *logger.Logger

	// OnEvent receives every inbound frame. OnReconnect fires after every
	// successful dial except the first. Set before Connect.
	OnEvent     func(protocol.Envelope)
	OnReconnect func()

	reconnectBase time.Duration
	reconnectMax  time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	send   chan protocol.Envelope
	closed bool
	wg     sync.WaitGroup
}

func NewSocket(url, token string, reconnectBase, reconnectMax time.Duration, log *logger.Logger) *Socket {
	if reconnectBase <= 0 {
		reconnectBase = time.Second
	}
	if reconnectMax < reconnectBase {
		reconnectMax = 30 * time.Second
	}
	return &Socket{
		url:           url,
		token:         token,
		dialer:        websocket.DefaultDialer,
		log:           log,
		reconnectBase: reconnectBase,
		reconnectMax:  reconnectMax,
	}
}

// Connect dials the gateway and starts the read/write pumps. The connection
// authenticates at dial time with the bearer credential.
func (s *Socket) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	s.closed = false
	conn, err := s.dial()
	if err != nil {
		return apperrors.Network("socket connect", err)
	}
	s.startLocked(conn)
	return nil
}

func (s *Socket) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, _, err := s.dialer.Dial(s.url, header)
	return conn, err
}

// startLocked wires a fresh connection into the pumps. Caller holds s.mu.
func (s *Socket) startLocked(conn *websocket.Conn) {
	s.conn = conn
	s.send = make(chan protocol.Envelope, 256)
	s.wg.Add(2)
	go s.readPump(conn)
	go s.writePump(conn, s.send)
}

// Connected reports whether a live connection exists right now.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Emit queues a frame for delivery. Fails fast when disconnected so callers
// can fall back to REST. The lock covers the channel send so Close cannot
// slip in between the connected check and the enqueue.
func (s *Socket) Emit(env protocol.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return apperrors.Network("socket emit", apperrors.ErrNetwork)
	}
	select {
	case s.send <- env:
		return nil
	default:
		return apperrors.Network("socket emit", apperrors.ErrNetwork)
	}
}

// Close tears the connection down for good; no reconnect follows. Closing the
// send channel stops the write pump without waiting out a ping interval.
func (s *Socket) Close() {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	if s.send != nil {
		close(s.send)
		s.send = nil
	}
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
}

func (s *Socket) readPump(conn *websocket.Conn) {
	defer s.wg.Done()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warnf("socket read failed: %v", err)
			}
			break
		}
		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.log.Warnf("socket frame unmarshal failed: %v", err)
			continue
		}
		if s.OnEvent != nil {
			s.OnEvent(env)
		}
	}

	s.mu.Lock()
	intentional := s.closed
	if s.conn == conn {
		s.conn = nil
		if s.send != nil {
			close(s.send)
			s.send = nil
		}
	}
	s.mu.Unlock()
	conn.Close()

	if !intentional {
		go s.reconnectLoop()
	}
}

func (s *Socket) writePump(conn *websocket.Conn, send chan protocol.Envelope) {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Socket) reconnectLoop() {
	delay := s.reconnectBase
	for {
		s.mu.Lock()
		if s.closed || s.conn != nil {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		time.Sleep(delay)
		metrics.SocketReconnects.Inc()

		conn, err := s.dial()
		if err != nil {
			s.log.Warnf("socket reconnect failed: %v", err)
			delay *= 2
			if delay > s.reconnectMax {
				delay = s.reconnectMax
			}
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.startLocked(conn)
		s.mu.Unlock()

		s.log.Infof("socket reconnected")
		if s.OnReconnect != nil {
			s.OnReconnect()
		}
		return
	}
}
