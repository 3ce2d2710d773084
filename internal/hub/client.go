package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/config"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// client is the websocket side of a Connection. Only writePump writes to the socket.
type client struct {
	hub    *Hub
	ws     *websocket.Conn
	logger *zap.SugaredLogger

	send    chan Frame
	closing chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error

	limiter *rate.Limiter
}

func newClient(h *Hub, ws *websocket.Conn, invocationRate float64) *client {
	burst := int(invocationRate * 2)
	if burst < 1 {
		burst = 1
	}

	return &client{
		hub:     h,
		ws:      ws,
		logger:  h.logger,
		send:    make(chan Frame, sendBufferSize),
		closing: make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(invocationRate), burst),
	}
}

func (c *client) Send(f Frame) bool {
	select {
	case <-c.closing:
		return false
	default:
	}

	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
	})
}

// fail records the first transport error and closes the client.
func (c *client) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.Close()
}

func (c *client) cause() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *client) isClosing() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// serve runs the connection until either side closes it.
func (c *client) serve(ctx context.Context, p authz.Principal) error {
	conn, err := c.hub.Connect(p, c)
	if err != nil {
		_ = c.ws.Close()
		return err
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.closing:
		}
	}()

	cause := c.readPump(ctx, conn)
	c.Close()
	<-writerDone

	c.hub.Disconnect(conn, cause)
	return nil
}

func (c *client) readPump(ctx context.Context, conn *Connection) error {
	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	c.ws.SetPongHandler(func(string) error {
		conn.Touch(c.hub.now())
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.isClosing() {
				return c.cause()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}

		var inv Invocation
		if err := json.Unmarshal(data, &inv); err != nil || inv.Type != FrameInvocation || inv.Target == "" {
			c.logger.Debugw("ignoring malformed frame", "connectionId", conn.id, "error", err)
			continue
		}

		if !c.limiter.Allow() {
			c.hub.Reject(conn, inv, ErrRateLimited)
			continue
		}

		c.hub.Invoke(ctx, conn, inv)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				c.fail(err)
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.fail(err)
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}

		case <-c.closing:
			c.flush()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still buffered, e.g. a ForceReconnect sent right before Close.
func (c *client) flush() {
	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		c.logger.Errorw("failed to marshal frame", "target", f.Target, "error", err)
		return nil
	}

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Endpoint upgrades authenticated HTTP requests to realtime connections.
type Endpoint struct {
	ctx      context.Context
	hub      *Hub
	upgrader websocket.Upgrader
	rate     float64
}

// NewEndpoint serves the hub over websockets. ctx bounds every connection's lifetime.
func NewEndpoint(ctx context.Context, h *Hub, cfg config.HubConfig) *Endpoint {
	e := &Endpoint{
		ctx: ctx,
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		rate: cfg.InvocationRate,
	}

	if len(cfg.AllowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
		for _, origin := range cfg.AllowedOrigins {
			allowed[origin] = struct{}{}
		}
		_, wildcard := allowed["*"]
		e.upgrader.CheckOrigin = func(r *http.Request) bool {
			if wildcard {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		}
	}

	return e
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	if !p.Authenticated() {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		e.hub.logger.Debugw("websocket upgrade failed", "userId", p.UserID, "error", err)
		return
	}

	if err := newClient(e.hub, ws, e.rate).serve(e.ctx, p); err != nil {
		e.hub.logger.Errorw("failed to register connection", "userId", p.UserID, "error", err)
	}
}
