package mjpeg

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestAppendPartLayout(t *testing.T) {
	got := string(AppendPart(nil, Boundary, JPEG, []byte("abc")))
	want := "--FRAME\r\nContent-Type: image/jpeg\r\nContent-Length: 3\r\n\r\nabc\r\n"
	if got != want {
		t.Fatalf("AppendPart=%q, want %q", got, want)
	}
}

func TestWritePartThenRead(t *testing.T) {
	var stream bytes.Buffer
	frames := [][]byte{[]byte("first"), {0xff, 0xd8, '\r', '\n', 0xff, 0xd9}, []byte("third")}
	for _, f := range frames {
		if err := WritePart(&stream, Boundary, JPEG, f); err != nil {
			t.Fatalf("WritePart error: %v", err)
		}
	}
	stream.WriteString("--FRAME--\r\n")

	r := NewPartReader(&stream, Boundary)
	for i, want := range frames {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next(%d) error: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Next(%d)=%q, want %q", i, got, want)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after close error=%v, want EOF", err)
	}
}

func TestReadPartWithoutLength(t *testing.T) {
	stream := "--cam\r\nContent-Type: image/jpeg\r\n\r\npayload\r\n--cam--\r\n"
	r := NewPartReader(bytes.NewBufferString(stream), "cam")

	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("Next=%q, want payload", got)
	}
}

func TestBoundaryFromContentType(t *testing.T) {
	got, err := BoundaryFromContentType(ContentType(Boundary))
	if err != nil {
		t.Fatalf("BoundaryFromContentType error: %v", err)
	}
	if got != Boundary {
		t.Fatalf("boundary=%q, want %q", got, Boundary)
	}

	got, err = BoundaryFromContentType("multipart/x-mixed-replace;boundary=--myboundary")
	if err != nil || got != "myboundary" {
		t.Fatalf("boundary=%q,%v, want myboundary,nil", got, err)
	}

	if _, err := BoundaryFromContentType("image/jpeg"); !errors.Is(err, ErrNotMultipart) {
		t.Fatalf("error=%v, want ErrNotMultipart", err)
	}
}
