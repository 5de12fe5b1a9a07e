package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"time"
)

// conn is one accepted socket. It serves a single request and is then closed.
type conn struct {
	id   uint64
	srv  *Server
	rwc  net.Conn
	port int

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	stopClose func() bool

	logger *slog.Logger
}

func (s *Server) newConn(rwc net.Conn, port int) *conn {
	id := s.nextConnID.Add(1)
	ctx, cancel := context.WithCancel(s.ctx)
	c := &conn{
		id:     id,
		srv:    s,
		rwc:    rwc,
		port:   port,
		ctx:    ctx,
		cancel: cancel,
		logger: s.logger.With("conn", id),
	}
	// Cancelling the connection, directly or through server shutdown,
	// releases the socket so blocked reads and writes return.
	c.stopClose = context.AfterFunc(ctx, c.close)
	return c
}

// close releases the socket exactly once.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		if err := c.rwc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("close connection", "error", err)
		}
	})
}

// finish runs on every exit path of serve.
func (c *conn) finish() {
	if r := recover(); r != nil {
		c.logger.Error("connection panic", "panic", r)
	}
	c.stopClose()
	c.cancel()
	c.close()
	c.srv.forget(c)
}

func (c *conn) serve() {
	defer c.finish()

	// Let the accept loop run before this connection starts reading.
	runtime.Gosched()
	if c.ctx.Err() != nil {
		return
	}

	cfg := c.srv.config
	if cfg.ReadTimeout > 0 {
		_ = c.rwc.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}

	br := bufio.NewReader(c.rwc)
	req, err := ReadRequest(br, ParseOptions{
		MaxLineBytes: cfg.MaxLineBytes,
		MaxBodyBytes: cfg.MaxBodyBytes,
		LocalPort:    c.port,
		RemoteAddr:   c.rwc.RemoteAddr().String(),
		ID:           c.id,
		Trusted:      c.srv.trusted,
	})
	if err != nil {
		c.parseFailed(err)
		return
	}
	_ = c.rwc.SetReadDeadline(time.Time{})

	if cfg.LogRequests {
		c.logger.Info("request received",
			"method", req.Method(),
			"path", req.Path(),
			"host", req.Host(),
			"remote", req.RemoteAddr(),
			"client", req.ClientIP(),
		)
	}

	c.srv.dispatch(c.ctx, req)

	resp := req.Response()
	if resp == nil {
		c.logger.Error("no response", "path", req.Path())
		return
	}

	switch resp.Body.(type) {
	case StreamBody:
		c.srv.metrics.streamsOpened.Add(1)
	case StreamingBody:
		c.srv.metrics.streamsOpened.Add(1)
		go c.watchDisconnect(br)
	}

	if cfg.LogRequests {
		c.logger.Info("sending response",
			"status", resp.StatusCode,
			"content_type", resp.ContentType,
			"path", req.Path(),
		)
	}

	bw := bufio.NewWriter(c.rwc)
	if err := WriteResponse(c.ctx, bw, resp, c.cancel); err != nil {
		c.writeFailed(err)
		return
	}
	c.srv.metrics.responsesWritten.Add(1)
}

// watchDisconnect drains the read side until the peer goes away and then
// cancels the connection context. It only runs for close-delimited streams;
// a client that half-closes after its request still receives a length-known
// body in full.
func (c *conn) watchDisconnect(br *bufio.Reader) {
	_, _ = io.Copy(io.Discard, br)
	c.cancel()
}

func (c *conn) parseFailed(err error) {
	if errors.Is(err, ErrEmptyRequest) || IsDisconnect(err) {
		c.logger.Debug("connection closed before request", "error", err)
		return
	}
	c.srv.metrics.parseErrors.Add(1)
	c.logger.Error("request parse failed", "error", &ConnError{ConnID: c.id, Op: "parse", Err: err})
}

func (c *conn) writeFailed(err error) {
	if IsDisconnect(err) || c.ctx.Err() != nil {
		c.srv.metrics.disconnects.Add(1)
		c.logger.Debug("client disconnected", "error", err)
		return
	}
	c.srv.metrics.writeErrors.Add(1)
	c.logger.Error("response write failed", "error", &ConnError{ConnID: c.id, Op: "write", Err: err})
}
