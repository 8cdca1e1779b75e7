package core

// Frame is a raw encoded envelope ready for the wire.
type Frame []byte

// SessionID identifies one live connection for the lifetime of that connection.
type SessionID string

// SignalConnection abstracts the transport endpoint of one peer.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	ID() SessionID
	TrySend(Frame) error
	Close()
}
