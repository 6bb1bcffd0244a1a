package deadline

import (
	"testing"
	"time"
)

func TestDeadline(t *testing.T) {
	var hit bool
	func() {
		defer func() {
			if v := recover(); v != nil {
				if v != "deadline" {
					t.Fatalf("expected 'deadline', got '%v'", v)
				}
				hit = true
			}
		}()
		dl := New(time.Now().Add(time.Millisecond * 10))
		for {
			time.Sleep(time.Millisecond)
			dl.Check()
		}
	}()
	if !hit {
		t.Fatal("deadline was not hit")
	}
}

func TestDeadlineNil(t *testing.T) {
	// a nil deadline is a no-op
	var dl *Deadline
	dl.Check()
}

func TestDeadlineZero(t *testing.T) {
	dl := &Deadline{}
	dl.Check()
	if dl.Hit() {
		t.Fatal("zero deadline reported a hit")
	}
}
