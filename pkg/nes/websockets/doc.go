// Package websockets defines the nes wire protocol carried over a
// WebSocket connection.
//
// The protocol gives applications HTTP-like request/response semantics
// (method, path, headers, payload, status code) over a single persistent
// socket, plus unsolicited broadcast messages and an in-band
// authentication handshake.
package websockets
