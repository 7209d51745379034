// Package guardian is a minimal two-message protocol (ping, pong) run over
// a byte-oriented [transport.Transport]. It exercises the transport with
// serialized messages the way a networked deployment would, and serves as
// a liveness probe between participants before a ceremony.
package guardian
