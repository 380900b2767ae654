package middleware

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Content types that are already compressed
var excludedContentTypes = []string{
	"image/",
	"video/",
	"audio/",
	"application/zip",
	"application/gzip",
}

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// Minimum body size that gets compressed
	MinLength int
	// Gzip level, 1-9
	Level int
	// Requests whose path starts with one of these are passed through
	SkipPrefixes []string
}

// DefaultCompressionConfig compresses bodies of 1KB and up. Prometheus
// scrapes negotiate their own encoding so /metrics is skipped.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinLength:    1024,
		Level:        gzip.DefaultCompression,
		SkipPrefixes: []string{"/metrics"},
	}
}

func shouldCompress(contentType string) bool {
	for _, excluded := range excludedContentTypes {
		if strings.HasPrefix(contentType, excluded) {
			return false
		}
	}
	return true
}

// Compression gunzips request bodies sent with Content-Encoding: gzip and
// gzips responses for clients that accept it
func Compression(cfg CompressionConfig) gin.HandlerFunc {
	writers := sync.Pool{
		New: func() any {
			gz, err := gzip.NewWriterLevel(io.Discard, cfg.Level)
			if err != nil {
				gz = gzip.NewWriter(io.Discard)
			}
			return gz
		},
	}

	return func(c *gin.Context) {
		for _, prefix := range cfg.SkipPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		if c.Request.Header.Get("Content-Encoding") == "gzip" {
			if err := decompressBody(c.Request); err != nil {
				c.AbortWithStatus(http.StatusBadRequest)
				return
			}
		}

		if !strings.Contains(c.Request.Header.Get("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		w := &gzipResponseWriter{
			ResponseWriter: c.Writer,
			minLength:      cfg.MinLength,
			pool:           &writers,
		}
		c.Writer = w
		c.Header("Vary", "Accept-Encoding")

		c.Next()

		_ = w.finish()
	}
}

func decompressBody(r *http.Request) error {
	reader, err := gzip.NewReader(r.Body)
	if err != nil {
		return err
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.Header.Del("Content-Encoding")
	r.ContentLength = int64(len(body))
	return nil
}

// gzipResponseWriter buffers the body so the size threshold can be checked
// before any byte reaches the client
type gzipResponseWriter struct {
	gin.ResponseWriter
	buf       bytes.Buffer
	minLength int
	pool      *sync.Pool
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	return g.buf.Write(data)
}

func (g *gzipResponseWriter) WriteString(s string) (int, error) {
	return g.buf.WriteString(s)
}

func (g *gzipResponseWriter) finish() error {
	content := g.buf.Bytes()
	if !shouldCompress(g.Header().Get("Content-Type")) || len(content) < g.minLength {
		_, err := g.ResponseWriter.Write(content)
		return err
	}

	gz := g.pool.Get().(*gzip.Writer)
	defer g.pool.Put(gz)
	gz.Reset(g.ResponseWriter)

	g.Header().Set("Content-Encoding", "gzip")
	g.Header().Del("Content-Length")
	if _, err := gz.Write(content); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func (g *gzipResponseWriter) Flush() {
	g.ResponseWriter.Flush()
}

func (g *gzipResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return g.ResponseWriter.Hijack()
}
