package sse

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yllibed/httpserver/pkg/server"
)

// ContentType is the media type of SSE responses.
const ContentType = "text/event-stream"

// SessionFunc runs an SSE session. ctx is the session context.
type SessionFunc func(ctx context.Context, s *Session) error

// Start sets a streaming SSE response on req. fn runs once the response head
// has been sent. The session ends when fn returns or the connection is
// cancelled; the heartbeat is stopped and joined before the response
// completes.
//
// Start does not check the Accept header; see Negotiate and Handler.
func Start(req *server.Request, fn SessionFunc, opts ...Option) {
	o := buildOptions(opts)

	header := o.Header.Clone()
	if header == nil {
		header = make(server.Header)
	}
	if !header.Has("Cache-Control") {
		header.Set("Cache-Control", "no-cache")
	}

	req.SetStreamingResponse(ContentType, func(ctx context.Context, w *server.StreamWriter) error {
		return run(ctx, req, w, fn, o)
	}, server.WithStatus(o.StatusCode, o.Reason), server.WithHeaders(header))
}

// Negotiate reports whether req accepts text/event-stream.
func Negotiate(req *server.Request) bool {
	return req.Accepts(ContentType)
}

func run(ctx context.Context, req *server.Request, w *server.StreamWriter, fn SessionFunc, o Options) error {
	w.SetNewline("\n")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := newSession(ctx, cancel, req, w, o.AutoFlush)
	logger := o.Logger.With("conn", req.ID(), "path", req.Path())

	var g errgroup.Group
	if o.HeartbeatInterval > 0 {
		g.Go(func() error {
			heartbeat(ctx, s, o.HeartbeatInterval, o.HeartbeatComment)
			return nil
		})
	}

	var err error
	if fn != nil {
		err = fn(ctx, s)
	}
	cancel()
	_ = g.Wait()

	switch {
	case err == nil:
		logger.Debug("sse session ended")
	case errors.Is(err, context.Canceled) || server.IsDisconnect(err):
		logger.Debug("sse session cancelled", "error", err)
	default:
		logger.Error("sse session failed", "error", err)
	}
	return nil
}

func heartbeat(ctx context.Context, s *Session, interval time.Duration, comment string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SendComment(ctx, comment); err != nil {
				return
			}
		}
	}
}
