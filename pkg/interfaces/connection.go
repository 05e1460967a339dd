package interfaces

// Connection represents a single socket's write side.
// ARCHITECTURAL DISCOVERY: pure abstraction without transport details keeps
// the room coordinator testable with a fake that records frames instead of
// opening real sockets.
type Connection interface {
	// WriteJSON sends a JSON frame to the client.
	// FUNCTIONAL DISCOVERY: thread-safety is a contract of the implementation,
	// not of this interface — every implementation must use a single-writer
	// pattern internally so concurrent WriteJSON calls never race on the wire.
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources. Idempotent.
	Close() error

	// ID returns the connection's socket identifier, stable for its lifetime.
	ID() string
}
