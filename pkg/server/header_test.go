package server

import (
	"reflect"
	"testing"
)

func TestHeader_CaseInsensitive(t *testing.T) {
	h := make(Header)
	h.Add("x-token", "a")
	h.Add("X-TOKEN", "b")

	if got := h.Get("X-Token"); got != "a" {
		t.Errorf("Get = %q, want %q", got, "a")
	}
	if got := h.Values("x-token"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Values = %v, want [a b]", got)
	}
	if !h.Has("X-Token") {
		t.Error("Has should report true")
	}

	h.Set("x-token", "c")
	if got := h.Values("X-Token"); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Values after Set = %v, want [c]", got)
	}

	h.Del("X-TOKEN")
	if h.Has("x-token") {
		t.Error("Del should remove the key")
	}
}

func TestHeader_SizeAndKeys(t *testing.T) {
	h := make(Header)
	h.Add("B", "12")
	h.Add("A", "1")
	h.Add("A", "123")

	// "B"+"12" + "A"+"1"+"123"
	if got := h.Size(); got != 8 {
		t.Errorf("Size = %d, want 8", got)
	}
	if got := h.Keys(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("Keys = %v, want [A B]", got)
	}
}

func TestHeader_Clone(t *testing.T) {
	h := Header{"A": {"1"}}
	c := h.Clone()
	c.Add("A", "2")
	if len(h["A"]) != 1 {
		t.Error("Clone should not share value slices")
	}
	if Header(nil).Clone() != nil {
		t.Error("nil Header should clone to nil")
	}
}
