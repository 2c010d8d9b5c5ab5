// Package mjpeg encodes and decodes multipart/x-mixed-replace JPEG streams.
package mjpeg

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strconv"
	"strings"
)

const (
	// Boundary is the part separator used by the stream endpoint.
	Boundary = "FRAME"
	// JPEG is the content type of every part the server emits.
	JPEG = "image/jpeg"

	maxFrameSize = 16 << 20
)

// ErrNotMultipart is returned when a response is not a multipart stream.
var ErrNotMultipart = errors.New("mjpeg: content type is not multipart")

// ContentType returns the response content type for boundary.
func ContentType(boundary string) string {
	return "multipart/x-mixed-replace; boundary=" + boundary
}

// AppendPart appends one part (delimiter, headers, body, trailing CRLF) to dst.
func AppendPart(dst []byte, boundary, contentType string, data []byte) []byte {
	dst = append(dst, "--"...)
	dst = append(dst, boundary...)
	dst = append(dst, "\r\nContent-Type: "...)
	dst = append(dst, contentType...)
	dst = append(dst, "\r\nContent-Length: "...)
	dst = strconv.AppendInt(dst, int64(len(data)), 10)
	dst = append(dst, "\r\n\r\n"...)
	dst = append(dst, data...)
	dst = append(dst, "\r\n"...)
	return dst
}

// WritePart writes one part to w in a single Write call.
func WritePart(w io.Writer, boundary, contentType string, data []byte) error {
	buf := AppendPart(make([]byte, 0, len(data)+128), boundary, contentType, data)
	_, err := w.Write(buf)
	return err
}

// BoundaryFromContentType extracts the boundary parameter of a multipart
// content type.
func BoundaryFromContentType(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", ErrNotMultipart
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", errors.New("mjpeg: missing boundary")
	}
	return strings.TrimPrefix(boundary, "--"), nil
}

// PartReader decodes successive part bodies from a multipart stream.
type PartReader struct {
	mr *multipart.Reader
}

// NewPartReader reads parts separated by boundary from r.
func NewPartReader(r io.Reader, boundary string) *PartReader {
	return &PartReader{mr: multipart.NewReader(r, boundary)}
}

// Next returns the body of the next part. It returns io.EOF at the closing
// delimiter.
func (p *PartReader) Next() ([]byte, error) {
	// The part is left open: closing it would block until the next delimiter
	// arrives. NextPart skips whatever is left.
	part, err := p.mr.NextPart()
	if err != nil {
		return nil, err
	}

	if raw := part.Header.Get("Content-Length"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 || size > maxFrameSize {
			return nil, fmt.Errorf("mjpeg: invalid content length %q", raw)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(part, data); err != nil {
			return nil, err
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(part, maxFrameSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFrameSize {
		return nil, errors.New("mjpeg: frame too large")
	}
	return data, nil
}
