package netwindow

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/hostlink"
	"github.com/outofforest/hostlink/wire"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
)

var errConnClosed = errors.New("connection closed")

// Peer is the window of the app connected to the host.
type Peer struct {
	id     wire.PeerID
	origin string
	sendCh chan []byte
	recvCh chan hostlink.Message
	done   chan struct{}
}

// Origin returns origin announced by the app.
func (p *Peer) Origin() string {
	return p.origin
}

// PostMessage sends data to the app if its origin matches targetOrigin.
func (p *Peer) PostMessage(data []byte, targetOrigin string) error {
	if !originMatches(targetOrigin, p.origin) {
		return nil
	}

	select {
	case <-p.done:
		return errors.WithStack(errConnClosed)
	case p.sendCh <- data:
		return nil
	}
}

// Receive returns the next message sent by the app.
func (p *Peer) Receive(ctx context.Context) (hostlink.Message, error) {
	select {
	case <-ctx.Done():
		return hostlink.Message{}, errors.WithStack(ctx.Err())
	case <-p.done:
		return hostlink.Message{}, errors.WithStack(errConnClosed)
	case msg := <-p.recvCh:
		return msg, nil
	}
}

type serverConns struct {
	mu    sync.RWMutex
	peers map[wire.PeerID]*Peer
}

func newServerConns() *serverConns {
	return &serverConns{
		peers: map[wire.PeerID]*Peer{},
	}
}

func (c *serverConns) Add(hello *wire.Hello) (*Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.peers[hello.PeerID]; exists {
		return nil, errors.New("peer is already connected")
	}

	p := &Peer{
		id:     hello.PeerID,
		origin: string(hello.Origin),
		sendCh: make(chan []byte, queueSize),
		recvCh: make(chan hostlink.Message, queueSize),
		done:   make(chan struct{}),
	}
	c.peers[hello.PeerID] = p
	return p, nil
}

func (c *serverConns) Remove(p *Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p2, exists := c.peers[p.id]; exists && p2 == p {
		delete(c.peers, p.id)
		close(p.done)
	}
}

func (c *serverConns) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.peers)
}

// ServerConfig is the config of server.
type ServerConfig struct {
	// Origin is announced to apps as the origin of the host.
	Origin string

	MaxMessageSize uint64
}

// PeerHandler serves single connected app. Connection is closed when it returns.
type PeerHandler func(ctx context.Context, p *Peer) error

// RunServer accepts apps and runs handler for each of them.
func RunServer(ctx context.Context, ls net.Listener, config ServerConfig, handler PeerHandler) error {
	serverID, err := peerID()
	if err != nil {
		return err
	}

	conns := newServerConns()
	connConfig := resonance.Config{
		MaxMessageSize: config.MaxMessageSize,
	}

	return resonance.RunServer(ctx, ls, connConfig,
		func(ctx context.Context, c *resonance.Connection) error {
			return runServerConn(ctx, serverID, config.Origin, c, conns, handler)
		})
}

func runServerConn(
	ctx context.Context,
	serverID wire.PeerID,
	origin string,
	c *resonance.Connection,
	conns *serverConns,
	handler PeerHandler,
) error {
	hello, err := exchangeHello(c, &wire.Hello{
		PeerID: serverID,
		Origin: wire.Origin(origin),
	})
	if err != nil {
		return err
	}

	p, err := conns.Add(hello)
	if err != nil {
		return err
	}
	defer conns.Remove(p)

	log := logger.Get(ctx)
	log.Info("App connected", zap.String("origin", p.origin), zap.Int("apps", conns.Count()))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("handler", parallel.Fail, func(ctx context.Context) error {
			return handler(ctx, p)
		})
		spawn("receiver", parallel.Fail, func(ctx context.Context) error {
			for {
				data, err := c.ReceiveRawBytes()
				if err != nil {
					return err
				}

				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case p.recvCh <- hostlink.Message{Origin: p.origin, Data: data}:
				}
			}
		})
		spawn("sender", parallel.Fail, func(ctx context.Context) error {
			defer c.Close()

			for {
				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case data := <-p.sendCh:
					if err := c.SendRawBytes(data); err != nil {
						return err
					}
				}
			}
		})

		return nil
	})
}
