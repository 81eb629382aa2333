// Package chatbridge bridges a single authorized chat identity on a
// messaging platform to a persistent, locally executing coding agent that
// speaks a line-delimited stream-JSON event protocol.
//
// The core is three cooperating subsystems: the runner package owns the
// agent child process and turns its stdout into a cancellable event
// sequence, the chain and render packages turn that sequence into a live-
// editing chain of chat messages, and the coordinator package debounces
// chat input, enforces a single active turn, and wires the two together.
// The chatbridge package itself only defines the platform-facing contract
// (Frontend) that frontend/telegram implements, plus the shared error types.
package chatbridge
