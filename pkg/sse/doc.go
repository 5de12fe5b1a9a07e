// Package sse implements Server-Sent Events on top of the server's
// close-delimited streaming responses.
//
// A session is started from inside a handler with Start, or by registering a
// Handler. The session callback runs after the response head has been sent
// and may send events until it returns or the client disconnects:
//
//	sse.Start(req, func(ctx context.Context, s *sse.Session) error {
//	    for i := 0; ; i++ {
//	        if err := s.SendEvent(ctx, strconv.Itoa(i), sse.WithID(strconv.Itoa(i))); err != nil {
//	            return err
//	        }
//	        select {
//	        case <-ctx.Done():
//	            return ctx.Err()
//	        case <-time.After(time.Second):
//	        }
//	    }
//	})
//
// Writes on a session are serialised, so events may be sent from several
// goroutines. A heartbeat comment is sent periodically while the session is
// idle. A failed write cancels the session and returns a *DisconnectError,
// which matches context.Canceled.
package sse
