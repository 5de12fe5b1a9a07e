package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/http/httpguts"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultMaxLineBytes is the default ceiling for a request or header line.
const DefaultMaxLineBytes = 64 * 1024

// ParseOptions controls ReadRequest.
type ParseOptions struct {
	// MaxLineBytes bounds each request/header line. <= 0 means no limit.
	MaxLineBytes int

	// MaxBodyBytes bounds the body read from the wire. A request declaring a
	// larger Content-Length keeps its declared length but no body is read.
	// <= 0 means no limit.
	MaxBodyBytes int64

	// LocalPort is reported by Request.Port.
	LocalPort int

	// RemoteAddr is reported by Request.RemoteAddr.
	RemoteAddr string

	// ID is reported by Request.ID.
	ID uint64

	// Trusted selects the proxies whose forwarding headers Request.ClientIP
	// honours.
	Trusted *TrustedProxies
}

// ReadRequest parses one HTTP/1.x request from br.
//
// The request line must have exactly three space-separated tokens. Header
// lines are read until a blank line or EOF; a line without a colon is skipped.
// When Content-Length is a non-negative integer, that many bytes are read and
// decoded with the charset of Content-Type (UTF-8 by default). Chunked bodies
// are not recognised.
func ReadRequest(br *bufio.Reader, opts ParseOptions) (*Request, error) {
	line, err := readLine(br, opts.MaxLineBytes)
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return nil, &ParseError{Op: "request line", Err: ErrEmptyRequest}
		}
		return nil, &ParseError{Op: "request line", Err: err}
	}

	parts := strings.Split(line, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return nil, &ParseError{Op: "request line", Line: line, Err: ErrMalformedRequestLine}
	}

	req := &Request{
		id:         opts.ID,
		method:     parts[0],
		path:       parts[1], // absolute-form targets are not resolved
		proto:      parts[2],
		header:     make(Header),
		port:       opts.LocalPort,
		remoteAddr: opts.RemoteAddr,
		trusted:    opts.Trusted,
	}

	for {
		hl, err := readLine(br, opts.MaxLineBytes)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Op: "header", Err: err}
		}
		if hl == "" {
			break
		}
		name, value, ok := strings.Cut(hl, ":")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		req.header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
		req.promote(name, value)
	}

	if n, ok := req.ContentLength(); ok && n > 0 {
		if opts.MaxBodyBytes > 0 && n > opts.MaxBodyBytes {
			return req, nil
		}
		raw, err := io.ReadAll(io.LimitReader(br, n))
		if err != nil {
			return nil, &ParseError{Op: "body", Err: err}
		}
		req.body = decodeBody(raw, req.contentType)
	}

	return req, nil
}

// readLine reads one line terminated by LF or CRLF and returns it without the
// terminator. A final unterminated line is returned with a nil error.
func readLine(br *bufio.Reader, max int) (string, error) {
	var line []byte
	for {
		frag, err := br.ReadSlice('\n')
		if max > 0 && len(line)+len(frag) > max+2 {
			return "", ErrLineTooLong
		}
		line = append(line, frag...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			break
		}
		return "", err
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if max > 0 && len(line) > max {
		return "", ErrLineTooLong
	}
	return string(line), nil
}

var charsetPattern = regexp.MustCompile(`(?i)\Wcharset=([\w\-]+)`)

// decodeBody converts raw body bytes to a string using the charset declared in
// contentType. Unknown charsets and decoding failures fall back to UTF-8.
func decodeBody(raw []byte, contentType string) string {
	if m := charsetPattern.FindStringSubmatch(contentType); m != nil {
		if enc, err := htmlindex.Get(m[1]); err == nil {
			if name, _ := htmlindex.Name(enc); name != "utf-8" {
				if out, err := enc.NewDecoder().Bytes(raw); err == nil {
					return string(out)
				}
			}
		}
	}

	raw = bytes.TrimPrefix(raw, []byte("\xEF\xBB\xBF"))
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "�")
}

// headerNewlineToSpace keeps caller text on a single wire line.
var headerNewlineToSpace = strings.NewReplacer("\n", " ", "\r", " ")

// writeHead writes the status line and headers. contentLength < 0 omits
// Content-Length, which makes the body close-delimited. Keys that are not
// valid field names are dropped.
func writeHead(bw *bufio.Writer, resp *Response, contentLength int64) error {
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", resp.StatusCode, headerNewlineToSpace.Replace(resp.Reason))
	fmt.Fprintf(bw, "Content-Type: %s\r\n", headerNewlineToSpace.Replace(resp.ContentType))
	bw.WriteString("Connection: close\r\n")

	for _, key := range resp.Header.Keys() {
		if !httpguts.ValidHeaderFieldName(key) ||
			headerIs(key, "Content-Type") ||
			headerIs(key, "Connection") ||
			headerIs(key, "Content-Length") {
			continue
		}
		for _, v := range resp.Header[key] {
			fmt.Fprintf(bw, "%s: %s\r\n", key, headerNewlineToSpace.Replace(v))
		}
	}

	if contentLength >= 0 {
		bw.WriteString("Content-Length: ")
		bw.WriteString(strconv.FormatInt(contentLength, 10))
		bw.WriteString("\r\n")
	}
	_, err := bw.WriteString("\r\n")
	return err
}

// WriteResponse serialises resp onto bw using the delimitation strategy of its
// body. For StreamingBody, write is called with ctx and cancel is invoked on
// the first write failure.
//
// The length-known stream is closed on every exit path once opened.
func WriteResponse(ctx context.Context, bw *bufio.Writer, resp *Response, cancel context.CancelFunc) error {
	if resp == nil {
		return ErrNoResponse
	}

	switch body := resp.Body.(type) {
	case StreamBody:
		return writeStreamBody(ctx, bw, resp, body)

	case StreamingBody:
		if err := writeHead(bw, resp, -1); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		if body.Write == nil {
			return nil
		}
		w := NewStreamWriter(bw, cancel)
		werr := body.Write(ctx, w)
		if ferr := w.Flush(); werr == nil && w.Err() == nil {
			werr = ferr
		}
		return werr

	case BufferedBody:
		if err := writeHead(bw, resp, int64(len(body.Content))); err != nil {
			return err
		}
		if _, err := bw.Write(body.Content); err != nil {
			return err
		}
		return bw.Flush()

	case nil:
		if err := writeHead(bw, resp, 0); err != nil {
			return err
		}
		return bw.Flush()

	default:
		return fmt.Errorf("server: unsupported body %T", body)
	}
}

func writeStreamBody(ctx context.Context, bw *bufio.Writer, resp *Response, body StreamBody) (err error) {
	if body.Open == nil {
		return ErrNilStream
	}
	rc, length, err := body.Open(ctx)
	if err != nil {
		return fmt.Errorf("server: open stream: %w", err)
	}
	if rc == nil {
		return ErrNilStream
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := writeHead(bw, resp, length); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	src := io.Reader(rc)
	if length >= 0 {
		src = io.LimitReader(rc, length)
	}
	if _, err := io.Copy(bw, &ctxReader{ctx: ctx, r: src}); err != nil {
		return err
	}
	return bw.Flush()
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
