// Package server provides an embeddable HTTP/1.1 server built around a
// pipeline of request handlers.
//
// Every accepted connection carries exactly one request. The response is
// always sent with "Connection: close" and the socket is released afterwards,
// so there is no keep-alive, pipelining or chunked encoding.
//
// # Architecture
//
// The server consists of a few small pieces:
//
//   - Server: binds the IPv4 and IPv6 listeners and supervises connections
//   - conn: one goroutine per socket that parses, dispatches and responds
//   - Pipeline: ordered handlers, first to set a response wins
//   - Request: parsed request plus the response intent set by a handler
//   - Response: status, headers and one of three body strategies
//
// # Response Bodies
//
// A handler picks how the body is delimited:
//
//   - BufferedBody: fully known bytes, sent with Content-Length
//   - StreamBody: a stream opened after dispatch; its length, when known, is
//     sent as Content-Length, otherwise the body is close-delimited
//   - StreamingBody: a callback that writes for as long as it wants; always
//     close-delimited
//
// # Handler Registration
//
// Registering a handler returns a Registration. Closing it removes the handler
// and closes the handler when it implements io.Closer. The handler list is a
// persistent collection swapped by compare-and-swap, so registration never
// blocks an in-flight dispatch and a dispatch sees one consistent list.
//
// # Cancellation
//
// Each connection derives its context from the server context. Closing the
// server cancels every connection; a client disconnect during a streamed
// response cancels that connection. Cancelling a connection closes its socket.
//
// # Example Usage
//
//	s := server.New(server.DefaultConfig().WithPort(8080))
//	reg := s.RegisterHandler(server.HandlerFunc(
//	    func(ctx context.Context, req *server.Request, rel string) error {
//	        if rel == "/hello" {
//	            req.SetResponse("text/plain", "world")
//	        }
//	        return nil
//	    }))
//	defer reg.Close()
//
//	uri4, uri6, err := s.Start()
package server
