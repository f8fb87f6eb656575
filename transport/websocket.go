package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/mediate/behavior"
)

// WebSocket serves the frame protocol over WebSocket connections.
// Frames on one connection are handled in order.
type WebSocket struct {
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	logger     behavior.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// wsClient represents a single WebSocket connection.
type wsClient struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	cancel       context.CancelFunc
	mu           sync.Mutex
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithWebSocketReadTimeout sets how long a connection may stay idle. Time
// spent handling a frame does not count.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.readTimeout = d
	}
}

// WithWebSocketWriteTimeout sets the write timeout for WebSocket messages.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.writeTimeout = d
	}
}

// WithWebSocketCheckOrigin sets the origin check function for WebSocket upgrades.
func WithWebSocketCheckOrigin(fn func(r *http.Request) bool) WebSocketOption {
	return func(ws *WebSocket) {
		ws.upgrader.CheckOrigin = fn
	}
}

// WithWebSocketLogger sets the logger for connection events.
func WithWebSocketLogger(l behavior.Logger) WebSocketOption {
	return func(ws *WebSocket) {
		ws.logger = l
	}
}

// NewWebSocket creates a WebSocket handler for d.
func NewWebSocket(d Dispatcher, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		dispatcher: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Allow all origins by default
		},
		logger:       behavior.NopLogger{},
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		clients:      make(map[*wsClient]struct{}),
	}

	for _, opt := range opts {
		opt(ws)
	}

	return ws
}

// ServeHTTP upgrades the connection and handles frames until the client
// disconnects or Close is called. The forwarded headers of the upgrade
// request apply to every frame. Handlers see their context canceled when
// the connection goes away.
func (ws *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// The upgrade request's context ends when the handler returns
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	client := &wsClient{conn: conn, writeTimeout: ws.writeTimeout, cancel: cancel}
	if !ws.add(client) {
		cancel()
		client.close()
		return
	}

	messages := make(chan []byte)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		ws.readFrames(ctx, client, messages)
	}()

	defer func() {
		cancel()
		ws.remove(client)
		_ = conn.Close()
		<-readDone
	}()

	connMD := headerMetadata(r.Header)
	ws.extendReadDeadline(conn)

	for message := range messages {
		// No idle deadline while the frame is being handled
		_ = conn.SetReadDeadline(time.Time{})

		reply := handleFrame(ctx, ws.dispatcher, message, connMD)
		if err := client.writeJSON(reply); err != nil {
			return
		}
		ws.extendReadDeadline(conn)
	}
}

// readFrames delivers messages in arrival order and cancels the connection
// context once reading fails.
func (ws *WebSocket) readFrames(ctx context.Context, client *wsClient, messages chan<- []byte) {
	defer close(messages)
	defer client.cancel()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Debug("websocket closed", behavior.F("error", err.Error()))
			}
			return
		}
		_ = client.conn.SetReadDeadline(time.Time{})

		select {
		case messages <- message:
		case <-ctx.Done():
			return
		}
	}
}

func (ws *WebSocket) extendReadDeadline(conn *websocket.Conn) {
	if ws.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(ws.readTimeout))
	}
}

// Close sends a close frame to every connected client and refuses new
// connections.
func (ws *WebSocket) Close() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.closed = true
	for client := range ws.clients {
		client.cancel()
		client.close()
	}
}

// Clients returns the number of open connections.
func (ws *WebSocket) Clients() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

func (ws *WebSocket) add(c *wsClient) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return false
	}
	ws.clients[c] = struct{}{}
	return true
}

func (ws *WebSocket) remove(c *wsClient) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.clients, c)
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
	_ = c.conn.Close()
}
