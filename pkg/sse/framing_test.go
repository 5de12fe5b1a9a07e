package sse

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	gosse "github.com/tmaxmax/go-sse"

	"github.com/yllibed/httpserver/pkg/server"
)

func newTestWriter(buf *bytes.Buffer) *server.StreamWriter {
	w := server.NewStreamWriter(buf, nil)
	w.SetNewline("\n")
	return w
}

func TestWriteEvent(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		event string
		id    string
		want  string
	}{
		{
			name: "data only",
			data: "hello",
			want: "data: hello\n\n",
		},
		{
			name: "empty data",
			want: "data: \n\n",
		},
		{
			name:  "all fields",
			data:  "x",
			event: "tick",
			id:    "7",
			want:  "id: 7\nevent: tick\ndata: x\n\n",
		},
		{
			name: "line breaks",
			data: "a\r\nb\rc\nd",
			want: "data: a\ndata: b\ndata: c\ndata: d\n\n",
		},
		{
			name:  "id and event stay on one line",
			data:  "x",
			event: "ti\nck",
			id:    "1\r\n2",
			want:  "id: 12\nevent: tick\ndata: x\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := newTestWriter(&buf)
			if err := writeEvent(w, tt.data, tt.event, tt.id); err != nil {
				t.Fatalf("writeEvent() error: %v", err)
			}
			_ = w.Flush()
			if buf.String() != tt.want {
				t.Errorf("frame = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestWriteComment(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	if err := writeComment(w, "keepalive"); err != nil {
		t.Fatalf("writeComment() error: %v", err)
	}
	if err := writeComment(w, "a\nb"); err != nil {
		t.Fatalf("writeComment() error: %v", err)
	}
	_ = w.Flush()

	want := ": keepalive\n\n: a\n: b\n\n"
	if buf.String() != want {
		t.Errorf("frame = %q, want %q", buf.String(), want)
	}
}

func readEvents(t *testing.T, r *strings.Reader) []gosse.Event {
	t.Helper()
	var events []gosse.Event
	for ev, err := range gosse.Read(r, nil) {
		if err != nil {
			t.Fatalf("sse.Read: %v", err)
		}
		events = append(events, ev)
	}
	return events
}

func TestFraming_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	_ = writeComment(w, "hello")
	_ = writeEvent(w, "line1\r\nline2", "update", "1")
	_ = writeEvent(w, "{\"n\":2}", "", "2")
	_ = w.Flush()

	events := readEvents(t, strings.NewReader(buf.String()))
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %q", len(events), buf.String())
	}

	first := events[0]
	if first.Type != "update" || first.LastEventID != "1" || first.Data != "line1\nline2" {
		t.Errorf("first = %+v", first)
	}
	second := events[1]
	if second.LastEventID != "2" || second.Data != `{"n":2}` {
		t.Errorf("second = %+v", second)
	}
}

func newTestSession(buf *bytes.Buffer) (*Session, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	w := server.NewStreamWriter(buf, cancel)
	w.SetNewline("\n")
	req := server.NewRequest("GET", "/events", server.Header{"Last-Event-ID": {" 42 "}}, "")
	return newSession(ctx, cancel, req, w, true), cancel
}

func TestSession_ConcurrentSends(t *testing.T) {
	var buf bytes.Buffer
	s, cancel := newTestSession(&buf)
	defer cancel()

	if s.LastEventID() != "42" {
		t.Errorf("LastEventID = %q, want 42", s.LastEventID())
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.SendEvent(context.Background(), "first\nsecond", WithEventName("pair")); err != nil {
				t.Errorf("SendEvent() error: %v", err)
			}
		}()
	}
	wg.Wait()

	events := readEvents(t, strings.NewReader(buf.String()))
	if len(events) != n {
		t.Fatalf("got %d events, want %d", len(events), n)
	}
	for _, ev := range events {
		if ev.Type != "pair" || ev.Data != "first\nsecond" {
			t.Fatalf("interleaved event: %+v", ev)
		}
	}
}

func TestSession_ClosedSession(t *testing.T) {
	var buf bytes.Buffer
	s, cancel := newTestSession(&buf)
	cancel()

	if s.Connected() {
		t.Error("Connected should be false after cancel")
	}
	err := s.SendEvent(context.Background(), "x")
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrSessionClosed) {
		t.Errorf("err = %v, want cancellation wrapping ErrSessionClosed", err)
	}
	var de *DisconnectError
	if !errors.As(err, &de) || de.Op != "event" {
		t.Errorf("err = %v, want *DisconnectError for event", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written, got %q", buf.String())
	}
}

type brokenPipe struct{}

func (brokenPipe) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestSession_WriteFailureCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := server.NewStreamWriter(brokenPipe{}, cancel)
	s := newSession(ctx, cancel, server.NewRequest("GET", "/", nil, ""), w, true)

	err := s.SendComment(context.Background(), "ping")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want to match context.Canceled", err)
	}
	if s.Connected() {
		t.Error("session should be cancelled after a write failure")
	}
}

func TestSession_CallerContext(t *testing.T) {
	var buf bytes.Buffer
	s, cancel := newTestSession(&buf)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	stop()
	if err := s.SendEvent(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if !s.Connected() {
		t.Error("caller cancellation must not end the session")
	}
}

func TestSession_NoAutoFlush(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := server.NewStreamWriter(&buf, cancel)
	w.SetNewline("\n")
	s := newSession(ctx, cancel, server.NewRequest("GET", "/", nil, ""), w, false)

	_ = s.SendEvent(context.Background(), "x")
	if buf.Len() != 0 {
		t.Errorf("event should stay buffered, got %q", buf.String())
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if buf.String() != "data: x\n\n" {
		t.Errorf("flushed = %q", buf.String())
	}
}

func TestSendJSON(t *testing.T) {
	var buf bytes.Buffer
	s, cancel := newTestSession(&buf)
	defer cancel()

	payload := map[string]int{"n": 1}
	if err := SendJSON(context.Background(), s, payload, WithID("9")); err != nil {
		t.Fatalf("SendJSON() error: %v", err)
	}
	if buf.String() != "id: 9\ndata: {\"n\":1}\n\n" {
		t.Errorf("frame = %q", buf.String())
	}

	if err := SendJSON(context.Background(), s, func() {}); err == nil {
		t.Error("SendJSON should fail on unencodable payloads")
	}
}
