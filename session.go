package hostlink

import (
	"sync"

	"github.com/outofforest/hostlink/capability"
	"github.com/outofforest/hostlink/origin"
	"github.com/outofforest/hostlink/wire"
)

// State is the state of the initialization handshake.
type State int

// Handshake states.
const (
	StateNotStarted State = iota
	StateHandshakeSent
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "notStarted"
	case StateHandshakeSent:
		return "handshakeSent"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// HostContext is what the handshake negotiated.
type HostContext struct {
	FrameContext     wire.FrameContext
	HostClientType   wire.HostClientType
	ClientSDKVersion string
	Runtime          capability.Runtime
}

type pendingCall struct {
	// resolve is called with the reply and the origin it came from.
	resolve func(env *wire.Envelope, origin string)
	fail    func(err error)

	// partial calls stay registered until a reply without isPartialResponse arrives.
	partial bool
}

type outbound struct {
	ID        uint64
	Func      string
	Args      []any
	Timestamp int64
}

type handlerEntry struct {
	Handler        Handler
	AutoReregister bool
}

// session is the state shared by every component of a client. All fields are guarded by mu.
type session struct {
	mu sync.Mutex

	validator *origin.Validator

	state      State
	initFuture *Future[HostContext]
	hostOrigin string
	host       HostContext

	nextID   uint64
	pending  map[uint64]*pendingCall
	handlers map[string]handlerEntry
	queue    []outbound
}

func newSession(validator *origin.Validator) *session {
	return &session{
		validator: validator,
		pending:   map[uint64]*pendingCall{},
		handlers:  map[string]handlerEntry{},
	}
}

// allocateID must be called with mu held.
func (s *session) allocateID() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// reset clears the state and returns calls which were still pending.
func (s *session) reset() []*pendingCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]*pendingCall, 0, len(s.pending))
	for _, pc := range s.pending {
		pending = append(pending, pc)
	}

	s.state = StateNotStarted
	s.initFuture = nil
	s.hostOrigin = ""
	s.host = HostContext{}
	s.nextID = 0
	s.pending = map[uint64]*pendingCall{}
	s.handlers = map[string]handlerEntry{}
	s.queue = nil
	s.validator.Reset()

	return pending
}
