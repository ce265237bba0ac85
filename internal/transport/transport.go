// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for publishing analysis frames.
// Implementations must be safe for concurrent use and must not block the
// caller for longer than a write to a local socket.
type Transport interface {
	Send(data any) error
	Close() error
}
