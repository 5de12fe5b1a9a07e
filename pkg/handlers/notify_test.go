package handlers

import (
	"slices"
	"testing"
)

func TestNotify_Delivers(t *testing.T) {
	n := NewNotify("")

	var got []string
	cancel := n.Subscribe(func(body string) { got = append(got, "a:"+body) })
	n.Subscribe(func(body string) { got = append(got, "b:"+body) })

	if n.Subscribers() != 2 {
		t.Fatalf("Subscribers() = %d, want 2", n.Subscribers())
	}

	resp := handle(t, n, newRequest("POST", "/notify", nil, "ping"))
	if resp == nil || resp.StatusCode != 200 {
		t.Fatalf("response = %+v, want 200", resp)
	}
	if body := bodyOf(t, resp); body != "Notified" {
		t.Errorf("body = %q, want %q", body, "Notified")
	}
	if want := []string{"a:ping", "b:ping"}; !slices.Equal(got, want) {
		t.Errorf("deliveries = %v, want %v", got, want)
	}

	cancel()
	got = nil
	handle(t, n, newRequest("POST", "/NOTIFY?x=1", nil, "pong"))
	if want := []string{"b:pong"}; !slices.Equal(got, want) {
		t.Errorf("after unsubscribe = %v, want %v", got, want)
	}
}

func TestNotify_Routing(t *testing.T) {
	n := NewNotify("events")

	if resp := handle(t, n, newRequest("POST", "/notify", nil, "")); resp != nil {
		t.Error("other paths must fall through")
	}
	resp := handle(t, n, newRequest("GET", "/events", nil, ""))
	if resp == nil || resp.StatusCode != 405 {
		t.Fatalf("GET = %+v, want 405", resp)
	}
	if body := bodyOf(t, resp); body != "Method not authorized - use a POST" {
		t.Errorf("body = %q", body)
	}
}

func TestNotify_Close(t *testing.T) {
	n := NewNotify("/notify")
	calls := 0
	n.Subscribe(func(string) { calls++ })

	if err := n.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if n.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after Close, want 0", n.Subscribers())
	}

	resp := handle(t, n, newRequest("POST", "/notify", nil, "late"))
	if resp == nil || resp.StatusCode != 200 {
		t.Errorf("closed notify should still answer, got %+v", resp)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}
