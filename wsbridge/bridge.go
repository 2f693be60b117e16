package wsbridge

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
)

// Bridge is the app end of the websocket. It is used with hostlink.NewFramelessTransport.
type Bridge struct {
	conn   *websocket.Conn
	sendCh chan []byte
	recvCh chan []byte
	done   chan struct{}
}

// Dial connects to the host listening on url. origin is sent as the Origin header.
func Dial(ctx context.Context, url, origin string) (*Bridge, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing host %q failed", url)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	return &Bridge{
		conn:   conn,
		sendCh: make(chan []byte, queueSize),
		recvCh: make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}, nil
}

// Run moves messages until ctx is canceled or connection breaks. Connection is closed on exit.
func (b *Bridge) Run(ctx context.Context) error {
	defer close(b.done)

	err := pump(ctx, b.conn, b.sendCh, b.recvCh)
	if ctx.Err() == nil {
		logger.Get(ctx).Error("Bridge connection failed", zap.Error(err))
	}
	return err
}

// FramelessPostMessage sends serialized envelope to the host.
func (b *Bridge) FramelessPostMessage(data string) error {
	return enqueue(b.sendCh, b.done, []byte(data))
}

// Receive returns the next native message sent by the host.
func (b *Bridge) Receive(ctx context.Context) ([]byte, error) {
	return dequeue(ctx, b.recvCh, b.done)
}
