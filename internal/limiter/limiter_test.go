package limiter

import "testing"

func TestAllow(t *testing.T) {
	l := New(2)
	r1, ok1 := l.Allow("a")
	_, ok2 := l.Allow("A")
	_, ok3 := l.Allow("a")
	if !ok1 || !ok2 || ok3 {
		t.Fatalf("allow = %v %v %v, want true true false", ok1, ok2, ok3)
	}
	if _, ok := l.Allow("b"); !ok {
		t.Error("keys share slots")
	}
	r1()
	r1()
	if _, ok := l.Allow("a"); !ok {
		t.Error("slot not released")
	}
	if _, ok := l.Allow("a"); ok {
		t.Error("double release freed two slots")
	}
}
