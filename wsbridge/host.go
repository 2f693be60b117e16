package wsbridge

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/outofforest/hostlink"
	"github.com/outofforest/hostlink/origin"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// HostConn is the host end of the websocket. Envelopes sent to the app are nested under "data"
// the way hosting runtimes deliver them.
type HostConn struct {
	origin string
	sendCh chan []byte
	recvCh chan []byte
	done   chan struct{}
}

// Origin returns the origin the app connected from.
func (c *HostConn) Origin() string {
	return c.origin
}

// Send delivers envelope to the app.
func (c *HostConn) Send(envelope []byte) error {
	data, err := hostlink.WrapNativeMessage(envelope)
	if err != nil {
		return err
	}
	return enqueue(c.sendCh, c.done, data)
}

// Receive returns the next envelope sent by the app.
func (c *HostConn) Receive(ctx context.Context) ([]byte, error) {
	return dequeue(ctx, c.recvCh, c.done)
}

// ServeFunc serves single connected app.
type ServeFunc func(ctx context.Context, c *HostConn) error

// NewHandler returns HTTP handler upgrading requests to websockets and running serve for each
// of them. Connections live until ctx is canceled. If allowedOrigins is empty, apps from any
// origin are accepted.
func NewHandler(ctx context.Context, allowedOrigins []string, serve ServeFunc) http.Handler {
	validator := origin.New("")
	validator.Add(allowedOrigins...)

	return &handler{
		ctx:   ctx,
		serve: serve,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return len(allowedOrigins) == 0 || validator.IsValid(r.Header.Get("Origin"))
			},
		},
	}
}

type handler struct {
	ctx      context.Context
	serve    ServeFunc
	upgrader websocket.Upgrader
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(h.ctx)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("Websocket upgrade failed", zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
		return
	}

	c := &HostConn{
		origin: r.Header.Get("Origin"),
		sendCh: make(chan []byte, queueSize),
		recvCh: make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}

	err = parallel.Run(h.ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("pump", parallel.Fail, func(ctx context.Context) error {
			defer close(c.done)
			return pump(ctx, conn, c.sendCh, c.recvCh)
		})
		spawn("serve", parallel.Fail, func(ctx context.Context) error {
			return h.serve(ctx, c)
		})
		return nil
	})

	if h.ctx.Err() == nil {
		log.Info("App disconnected", zap.String("origin", c.origin), zap.Error(err))
	}
}
