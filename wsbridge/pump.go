// Package wsbridge carries frameless bridge traffic over a websocket.
package wsbridge

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/outofforest/parallel"
)

const (
	queueSize    = 100
	writeTimeout = 10 * time.Second
)

var errClosed = errors.New("websocket is closed")

// pump moves messages between conn and channels until ctx is canceled or conn breaks.
func pump(ctx context.Context, conn *websocket.Conn, sendCh <-chan []byte, recvCh chan<- []byte) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("reader", parallel.Fail, func(ctx context.Context) error {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() != nil {
						return errors.WithStack(ctx.Err())
					}
					return errors.WithStack(err)
				}

				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case recvCh <- data:
				}
			}
		})
		spawn("writer", parallel.Fail, func(ctx context.Context) error {
			defer conn.Close()

			for {
				select {
				case <-ctx.Done():
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(time.Second))
					return errors.WithStack(ctx.Err())
				case data := <-sendCh:
					if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
						return errors.WithStack(err)
					}
					if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
						return errors.WithStack(err)
					}
				}
			}
		})

		return nil
	})
}

// enqueue blocks until the writer takes data or the connection is closed.
func enqueue(sendCh chan<- []byte, done <-chan struct{}, data []byte) error {
	select {
	case <-done:
		return errors.WithStack(errClosed)
	case sendCh <- data:
		return nil
	}
}

func dequeue(ctx context.Context, recvCh <-chan []byte, done <-chan struct{}) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	case <-done:
		return nil, errors.WithStack(errClosed)
	case data := <-recvCh:
		return data, nil
	}
}
