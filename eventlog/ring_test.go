package eventlog

import (
	"fmt"
	"testing"
	"time"
)

func TestRingBounded(t *testing.T) {
	r := NewRing(3, "")
	for i := 0; i < 5; i++ {
		r.Log(Info, fmt.Sprintf("msg %d", i))
	}
	got := r.Entries()
	if len(got) != 3 {
		t.Fatalf("len=%d", len(got))
	}
	for i, want := range []string{"msg 2", "msg 3", "msg 4"} {
		if got[i].Message != want {
			t.Errorf("entry %d=%q, want %q", i, got[i].Message, want)
		}
	}
}

func TestRingDefaultLimit(t *testing.T) {
	r := NewRing(0, "test")
	for i := 0; i < 50; i++ {
		r.Log(Warning, "x")
	}
	if r.Len() != DefaultLimit {
		t.Errorf("len=%d", r.Len())
	}
}

func TestRingEntryFields(t *testing.T) {
	r := NewRing(5, "")
	r.now = func() time.Time { return time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC) }

	e := r.Append(Error, "System Failure.")
	if e.Timestamp != "13:04:05" {
		t.Errorf("timestamp=%q", e.Timestamp)
	}
	if e.Severity != Error || e.ID == "" {
		t.Errorf("entry=%+v", e)
	}
	if r.Append(Info, "again").ID == e.ID {
		t.Error("ids should differ")
	}
}

func TestRingSubscribe(t *testing.T) {
	r := NewRing(2, "")
	var seen []Entry
	r.Subscribe(func(e Entry) { seen = append(seen, e) })
	r.Log(Success, "online")
	r.Log(Info, "idle")
	if len(seen) != 2 || seen[0].Message != "online" || seen[1].Severity != Info {
		t.Errorf("seen=%+v", seen)
	}
}
