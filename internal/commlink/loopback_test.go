package commlink

import (
	"bytes"
	"testing"
)

func TestLoopbackRoundTrip(t *testing.T) {
	a, b := NewLoopbackPair()
	defer a.Close()
	defer b.Close()

	for _, n := range []int{1, 7, 64, 512} {
		payload := bytes.Repeat([]byte{0xAB}, n)
		done := make(chan error, 1)
		go func() { done <- a.Write(payload) }()

		got, err := b.Read(n)
		if err != nil {
			t.Fatalf("Read(%d): %v", n, err)
		}
		if err := <-done; err != nil {
			t.Fatalf("Write(%d): %v", n, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("Read(%d) = %x, want %x", n, got, payload)
		}
	}
}

func TestLoopbackClosedReadFails(t *testing.T) {
	a, b := NewLoopbackPair()
	a.Close()
	b.Close()

	if _, err := a.Read(1); err == nil {
		t.Fatal("expected error reading from closed loopback")
	}
}
