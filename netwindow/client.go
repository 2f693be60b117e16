package netwindow

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/hostlink"
	"github.com/outofforest/hostlink/wire"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
)

const queueSize = 100

type outgoing struct {
	Data         []byte
	TargetOrigin string
}

// ClientConfig is the config of client.
type ClientConfig struct {
	// Address is the address of the host.
	Address string

	// Origin is announced to the host as the origin of the app.
	Origin string

	MaxMessageSize uint64
}

// Client is the window of the host reached over network. Connection is reestablished
// whenever it breaks.
type Client struct {
	config   ClientConfig
	clientID wire.PeerID
	sendCh   chan outgoing
	recvCh   chan hostlink.Message
	closed   chan struct{}
}

// NewClient creates new client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Address == "" {
		return nil, errors.New("no address specified")
	}

	clientID, err := peerID()
	if err != nil {
		return nil, err
	}

	return &Client{
		config:   config,
		clientID: clientID,
		sendCh:   make(chan outgoing, queueSize),
		recvCh:   make(chan hostlink.Message, queueSize),
		closed:   make(chan struct{}),
	}, nil
}

// Run runs client.
func (client *Client) Run(ctx context.Context) error {
	defer close(client.closed)
	defer close(client.recvCh)

	connConfig := resonance.Config{
		MaxMessageSize: client.config.MaxMessageSize,
	}

	log := logger.Get(ctx)

	for {
		err := resonance.RunClient(ctx, client.config.Address, connConfig,
			func(ctx context.Context, c *resonance.Connection) error {
				return client.runConn(ctx, c)
			})

		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}

		log.Error("Host connection failed", zap.String("address", client.config.Address), zap.Error(err))
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(time.Second):
		}
	}
}

// PostMessage queues data for the host. Data is dropped if host origin does not match
// targetOrigin. It blocks while the queue is full, messages are kept over reconnects.
func (client *Client) PostMessage(data []byte, targetOrigin string) error {
	select {
	case <-client.closed:
		return errors.New("client is closed")
	case client.sendCh <- outgoing{Data: data, TargetOrigin: targetOrigin}:
		return nil
	}
}

// Receive returns the next message sent by the host.
func (client *Client) Receive(ctx context.Context) (hostlink.Message, error) {
	select {
	case <-ctx.Done():
		return hostlink.Message{}, errors.WithStack(ctx.Err())
	case msg, ok := <-client.recvCh:
		if !ok {
			return hostlink.Message{}, errors.New("client is closed")
		}
		return msg, nil
	}
}

func (client *Client) runConn(ctx context.Context, c *resonance.Connection) error {
	hello, err := exchangeHello(c, &wire.Hello{
		PeerID: client.clientID,
		Origin: wire.Origin(client.config.Origin),
	})
	if err != nil {
		return err
	}
	hostOrigin := string(hello.Origin)

	logger.Get(ctx).Info("Connected to host", zap.String("origin", hostOrigin))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Fail, func(ctx context.Context) error {
			for {
				data, err := c.ReceiveRawBytes()
				if err != nil {
					return err
				}

				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case client.recvCh <- hostlink.Message{Origin: hostOrigin, Data: data}:
				}
			}
		})
		spawn("sender", parallel.Fail, func(ctx context.Context) error {
			defer c.Close()

			for {
				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case toSend := <-client.sendCh:
					if !originMatches(toSend.TargetOrigin, hostOrigin) {
						continue
					}
					if err := c.SendRawBytes(toSend.Data); err != nil {
						return err
					}
				}
			}
		})

		return nil
	})
}
