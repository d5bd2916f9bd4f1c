package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crystaldolphin/researchflow/internal/bus"
	"github.com/crystaldolphin/researchflow/internal/config/channel"
)

const (
	wsReadLimit    = 64 << 10
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
)

// Frame types on the WebSocket endpoint. Outbound frames use the
// bus.MessageKind values ("answer", "progress", "error").
const (
	wsTypeQuery    = "query"
	wsTypeAccepted = "accepted"
)

// wsFrame is the JSON frame exchanged with WebSocket clients.
type wsFrame struct {
	Type    string `json:"type"`
	Query   string `json:"query,omitempty"`
	Content string `json:"content,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex // serialises writes
}

func (c *wsConn) write(f wsFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(f)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// WebSocketChannel serves research requests over WebSocket and streams
// progress frames back to the client that asked.
type WebSocketChannel struct {
	Base
	cfg      channel.WebSocketConfig
	upgrader websocket.Upgrader

	seq   atomic.Uint64
	mu    sync.RWMutex
	conns map[string]*wsConn
}

func NewWebSocketChannel(cfg channel.WebSocketConfig, inbound *bus.AgentBus) *WebSocketChannel {
	w := &WebSocketChannel{
		Base:  NewBase(bus.ChannelWebSocket, inbound, cfg.AllowFrom),
		cfg:   cfg,
		conns: make(map[string]*wsConn),
	}
	w.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     w.checkOrigin,
	}
	return w
}

func (w *WebSocketChannel) Name() bus.Channel { return bus.ChannelWebSocket }

// Handler returns the HTTP handler that upgrades requests on the configured path.
func (w *WebSocketChannel) Handler() http.Handler {
	path := w.cfg.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, w.serveWS)
	return mux
}

func (w *WebSocketChannel) Start(ctx context.Context) error {
	addr := net.JoinHostPort(w.cfg.Host, strconv.Itoa(w.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("WebSocket listening", "addr", addr, "path", w.cfg.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("websocket: listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		w.closeAll()
		return ctx.Err()
	}
}

func (w *WebSocketChannel) checkOrigin(r *http.Request) bool {
	if len(w.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(w.cfg.AllowedOrigins, origin)
}

func (w *WebSocketChannel) serveWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	chatID := "ws-" + strconv.FormatUint(w.seq.Add(1), 10)
	senderID := r.URL.Query().Get("client")
	if senderID == "" {
		senderID = chatID
	}
	c := &wsConn{conn: conn}
	w.register(chatID, c)
	defer w.unregister(chatID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go w.keepAlive(ctx, c)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var in wsFrame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("WebSocket read error", "chat_id", chatID, "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		if in.Type != wsTypeQuery || in.Query == "" {
			_ = c.write(wsFrame{Type: string(bus.KindError), Content: `expected {"type":"query","query":"..."}`})
			continue
		}
		if !w.HandleMessage(ctx, senderID, chatID, in.Query, nil) {
			_ = c.write(wsFrame{Type: string(bus.KindError), Content: "request rejected"})
			continue
		}
		_ = c.write(wsFrame{Type: wsTypeAccepted, ChatID: chatID})
	}
}

func (w *WebSocketChannel) keepAlive(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *WebSocketChannel) register(chatID string, c *wsConn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conns[chatID] = c
}

func (w *WebSocketChannel) unregister(chatID string) {
	w.mu.Lock()
	c, ok := w.conns[chatID]
	delete(w.conns, chatID)
	w.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

func (w *WebSocketChannel) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, c := range w.conns {
		_ = c.conn.Close()
		delete(w.conns, id)
	}
}

// Send writes msg to the connection that issued the request. Replies for a
// client that has gone away are dropped.
func (w *WebSocketChannel) Send(_ context.Context, msg bus.ChannelMessage) error {
	w.mu.RLock()
	c, ok := w.conns[msg.ChatId()]
	w.mu.RUnlock()
	if !ok {
		slog.Debug("WebSocket client gone", "chat_id", msg.ChatId())
		return nil
	}
	return c.write(wsFrame{
		Type:    string(msg.Kind()),
		Content: msg.Content(),
		ChatID:  msg.ChatId(),
	})
}
