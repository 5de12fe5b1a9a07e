package handlers

import "testing"

func TestStatic(t *testing.T) {
	h := NewStatic("hello", "text/plain; charset=utf-8", "héllo")

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"get", "GET", "/hello", 200, "héllo"},
		{"case insensitive", "get", "/HELLO", 200, "héllo"},
		{"query ignored", "GET", "/hello?x=1", 200, "héllo"},
		{"post", "POST", "/hello", 405, "Method not authorized - use a GET"},
		{"other path", "GET", "/hello/more", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handle(t, h, newRequest(tt.method, tt.target, nil, ""))
			if tt.wantStatus == 0 {
				if resp != nil {
					t.Errorf("expected fall-through, got %d", resp.StatusCode)
				}
				return
			}
			if resp == nil || resp.StatusCode != tt.wantStatus {
				t.Fatalf("resp = %+v, want status %d", resp, tt.wantStatus)
			}
			if got := bodyOf(t, resp); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}
