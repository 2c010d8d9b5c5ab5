package frame

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestReaderDeliversPublishedFrame(t *testing.T) {
	b := NewBuffer()
	b.Publish([]byte("one"))

	r := b.NewReader()
	f, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if string(f.Data) != "one" || f.Seq != 1 {
		t.Fatalf("frame=%q/%d, want one/1", f.Data, f.Seq)
	}
}

func TestReaderNeverRepeatsFrame(t *testing.T) {
	b := NewBuffer()
	b.Publish([]byte("one"))
	r := b.NewReader()
	if _, err := r.Next(context.Background()); err != nil {
		t.Fatalf("Next error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Next error=%v, want deadline exceeded", err)
	}
}

func TestReaderSkipsToNewest(t *testing.T) {
	b := NewBuffer()
	r := b.NewReader()
	b.Publish([]byte("one"))
	b.Publish([]byte("two"))
	b.Publish([]byte("three"))

	f, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if string(f.Data) != "three" || f.Seq != 3 {
		t.Fatalf("frame=%q/%d, want three/3", f.Data, f.Seq)
	}
}

func TestPublishWakesAllReaders(t *testing.T) {
	b := NewBuffer()
	const readers = 8

	var wg sync.WaitGroup
	started := make(chan struct{}, readers)
	results := make(chan Frame, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := b.NewReader()
			started <- struct{}{}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			f, err := r.Next(ctx)
			if err != nil {
				t.Errorf("Next error: %v", err)
				return
			}
			results <- f
		}()
	}
	for i := 0; i < readers; i++ {
		<-started
	}

	b.Publish([]byte("frame"))
	wg.Wait()
	close(results)

	count := 0
	for f := range results {
		if string(f.Data) != "frame" {
			t.Fatalf("frame=%q, want frame", f.Data)
		}
		count++
	}
	if count != readers {
		t.Fatalf("woken=%d, want %d", count, readers)
	}
}

func TestPublishCopiesInput(t *testing.T) {
	b := NewBuffer()
	src := []byte("abc")
	b.Publish(src)
	src[0] = 'x'

	f, ok := b.Latest()
	if !ok {
		t.Fatal("Latest ok=false, want true")
	}
	if string(f.Data) != "abc" {
		t.Fatalf("Latest=%q, want abc", f.Data)
	}
}

func TestWriteAdapter(t *testing.T) {
	b := NewBuffer()
	n, err := b.Write([]byte("jpeg"))
	if err != nil || n != 4 {
		t.Fatalf("Write=%d,%v, want 4,nil", n, err)
	}
	if b.Seq() != 1 {
		t.Fatalf("Seq=%d, want 1", b.Seq())
	}
}

func TestLatestEmpty(t *testing.T) {
	if _, ok := NewBuffer().Latest(); ok {
		t.Fatal("Latest ok=true on empty buffer, want false")
	}
}

func TestSlowReaderDoesNotBlockPublisher(t *testing.T) {
	b := NewBuffer()
	_ = b.NewReader()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish([]byte{byte(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked with an idle reader")
	}
	if b.Seq() != 1000 {
		t.Fatalf("Seq=%d, want 1000", b.Seq())
	}
}
