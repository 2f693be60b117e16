package wire

type (
	// PeerID defines peer ID.
	PeerID [32]byte

	// Origin is the scheme, host and port of a messaging context, e.g. "https://host.example.com".
	Origin string
)

// Hello is the message exchanged between peers when a network window is opened.
type Hello struct {
	PeerID PeerID
	Origin Origin
}
