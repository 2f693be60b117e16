// Package netwindow carries window messages between app and host over TCP.
package netwindow

import (
	"crypto/rand"

	"github.com/pkg/errors"

	"github.com/outofforest/hostlink/wire"
	"github.com/outofforest/resonance"
)

func peerID() (wire.PeerID, error) {
	var id wire.PeerID
	_, err := rand.Read(id[:])
	if err != nil {
		return wire.PeerID{}, errors.WithStack(err)
	}
	return id, nil
}

// exchangeHello sends own hello and returns the one of the peer.
func exchangeHello(c *resonance.Connection, hello *wire.Hello) (*wire.Hello, error) {
	m := wire.NewMarshaller()

	if err := c.SendProton(hello, m); err != nil {
		return nil, err
	}

	msg, err := c.ReceiveProton(m)
	if err != nil {
		return nil, err
	}

	peerHello, ok := msg.(*wire.Hello)
	if !ok {
		return nil, errors.New("hello message expected")
	}
	if peerHello.PeerID == hello.PeerID {
		return nil, errors.New("connected to myself")
	}
	return peerHello, nil
}

// originMatches reports whether message posted to targetOrigin may be delivered to origin.
func originMatches(targetOrigin, origin string) bool {
	return targetOrigin == wire.AnyOrigin || targetOrigin == origin
}
