package ringbuffer

import (
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	rb := New(64)

	in := make([]float32, 48)
	for i := range in {
		in[i] = float32(i)
	}
	if err := rb.Write(in); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, underrun := rb.ReadForPlayback(32)
	if underrun {
		t.Fatal("unexpected underrun")
	}
	for i := 0; i < 32; i++ {
		if out[i] != float32(i) {
			t.Fatalf("sample %d: got %f, expected %f", i, out[i], float32(i))
		}
	}

	out, underrun = rb.ReadForPlayback(16)
	if underrun {
		t.Fatal("unexpected underrun")
	}
	for i := 0; i < 16; i++ {
		if out[i] != float32(32+i) {
			t.Fatalf("sample %d: got %f, expected %f", i, out[i], float32(32+i))
		}
	}
}

func TestUnderrunPadsWithSilence(t *testing.T) {
	rb := New(64)

	if err := rb.Write([]float32{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, underrun := rb.ReadForPlayback(8)
	if !underrun {
		t.Fatal("expected underrun flag")
	}
	if len(out) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(out))
	}
	for i := 3; i < 8; i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d not silence: %f", i, out[i])
		}
	}

	// completely empty buffer must still return n samples immediately
	out, underrun = rb.ReadForPlayback(4)
	if !underrun || len(out) != 4 {
		t.Fatalf("empty read: underrun=%v len=%d", underrun, len(out))
	}
}

func TestPeekRecentDoesNotAdvanceCursor(t *testing.T) {
	rb := New(64)

	in := make([]float32, 16)
	for i := range in {
		in[i] = float32(i + 1)
	}
	if err := rb.Write(in); err != nil {
		t.Fatalf("write: %v", err)
	}

	peeked := rb.PeekRecent(8)
	for i := 0; i < 8; i++ {
		if peeked[i] != float32(9+i) {
			t.Fatalf("peek sample %d: got %f, expected %f", i, peeked[i], float32(9+i))
		}
	}

	if rb.Len() != 16 {
		t.Fatalf("peek advanced the cursor: len=%d", rb.Len())
	}

	out, _ := rb.ReadForPlayback(16)
	if out[0] != 1 {
		t.Fatalf("playback read disturbed by peek: got %f", out[0])
	}
}

func TestPeekRecentSeesConsumedSamples(t *testing.T) {
	rb := New(32)

	in := make([]float32, 16)
	for i := range in {
		in[i] = float32(i + 1)
	}
	rb.Write(in)
	rb.ReadForPlayback(16) // playback fully drains

	// the analysis tap must still see the recent audio
	peeked := rb.PeekRecent(4)
	want := []float32{13, 14, 15, 16}
	for i, w := range want {
		if peeked[i] != w {
			t.Fatalf("peek after drain, sample %d: got %f, expected %f", i, peeked[i], w)
		}
	}
}

func TestWriteBackpressure(t *testing.T) {
	rb := New(16)

	if err := rb.Write(make([]float32, 16)); err != nil {
		t.Fatalf("write: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- rb.Write(make([]float32, 8))
	}()

	select {
	case <-done:
		t.Fatal("write on a full buffer did not block")
	case <-time.After(50 * time.Millisecond):
	}

	// consuming must unblock the producer
	rb.ReadForPlayback(8)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("write after drain: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("producer still blocked after space was freed")
	}
}

func TestCloseUnblocksProducer(t *testing.T) {
	rb := New(8)
	rb.Write(make([]float32, 8))

	done := make(chan error, 1)
	go func() {
		done <- rb.Write(make([]float32, 8))
	}()

	time.Sleep(20 * time.Millisecond)
	rb.Close()

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock the producer")
	}
}

func TestFlushDiscardsUnread(t *testing.T) {
	rb := New(32)
	rb.Write(make([]float32, 24))
	rb.Flush()

	if rb.Len() != 0 {
		t.Fatalf("expected empty buffer after flush, len=%d", rb.Len())
	}
	_, underrun := rb.ReadForPlayback(4)
	if !underrun {
		t.Fatal("expected underrun after flush")
	}
}
