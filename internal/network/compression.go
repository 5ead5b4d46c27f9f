// File: internal/network/compression.go
package network

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is advertised on every request that does not set its own.
const AcceptEncoding = "br, gzip, deflate"

var (
	gzipReaders = sync.Pool{New: func() any { return new(gzip.Reader) }}
	// brotli.NewReader(nil) is ready for Reset.
	brotliReaders = sync.Pool{New: func() any { return brotli.NewReader(nil) }}

	emptyReader = strings.NewReader("")
)

// CompressionMiddleware negotiates compression and hands decoded bodies to the
// caller, covering brotli which net/http does not decode.
type CompressionMiddleware struct {
	Transport http.RoundTripper
}

// NewCompressionMiddleware wraps transport, or http.DefaultTransport when nil.
func NewCompressionMiddleware(transport http.RoundTripper) *CompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CompressionMiddleware{Transport: transport}
}

func (cm *CompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}

	resp, err := cm.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := DecompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// DecompressResponse replaces resp.Body with a decoding reader for every layer
// listed in Content-Encoding, outermost last. On success the encoding and length
// headers are removed. On error the body must be treated as consumed.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		for _, layer := range splitEncodings(encodings[i]) {
			body, err := decodeLayer(layer, resp.Body)
			if err != nil {
				return err
			}
			resp.Body = body
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// splitEncodings returns the comma separated layers of one header value in
// decoding order.
func splitEncodings(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		out = append(out, strings.ToLower(strings.TrimSpace(parts[i])))
	}
	return out
}

func decodeLayer(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "", "identity":
		return body, nil

	case "gzip", "x-gzip":
		zr := gzipReaders.Get().(*gzip.Reader)
		if err := zr.Reset(body); err != nil {
			gzipReaders.Put(zr)
			return nil, fmt.Errorf("gzip initialization error: %w", err)
		}
		return &layeredBody{ReadCloser: zr, inner: body, release: func() {
			_ = zr.Reset(emptyReader)
			gzipReaders.Put(zr)
		}}, nil

	case "br":
		br := brotliReaders.Get().(*brotli.Reader)
		if err := br.Reset(body); err != nil {
			brotliReaders.Put(br)
			return nil, fmt.Errorf("brotli initialization error: %w", err)
		}
		return &layeredBody{ReadCloser: io.NopCloser(br), inner: body, release: func() {
			_ = br.Reset(emptyReader)
			brotliReaders.Put(br)
		}}, nil

	case "deflate":
		return &layeredBody{ReadCloser: inflate(body), inner: body}, nil
	}
	return nil, fmt.Errorf("unsupported Content-Encoding layer: %s", encoding)
}

// layeredBody closes the decoder and the body beneath it, then returns pooled
// decoders.
type layeredBody struct {
	io.ReadCloser
	inner   io.ReadCloser
	release func()
}

func (b *layeredBody) Close() error {
	err := errors.Join(b.ReadCloser.Close(), b.inner.Close())
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return err
}

// inflate decodes zlib wrapped deflate and falls back to raw deflate when the
// zlib header is missing, which some servers send.
func inflate(r io.Reader) io.ReadCloser {
	br := bufio.NewReader(r)
	if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr) {
		if zr, err := zlib.NewReader(br); err == nil {
			return zr
		}
	}
	return flate.NewReader(br)
}

// isZlibHeader checks the CMF/FLG pair of RFC 1950.
func isZlibHeader(h []byte) bool {
	return h[0]&0x0f == 8 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}
