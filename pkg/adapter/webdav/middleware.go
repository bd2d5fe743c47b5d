package webdav

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/dittodav/internal/logger"
)

// requestLogger logs each request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		if status >= http.StatusInternalServerError {
			logger.Warn("WebDAV %s %s -> %d (%d bytes, %s) remote=%s request_id=%s",
				r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start),
				r.RemoteAddr, middleware.GetReqID(r.Context()))
			return
		}
		logger.Debug("WebDAV %s %s -> %d (%d bytes, %s) remote=%s request_id=%s",
			r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start),
			r.RemoteAddr, middleware.GetReqID(r.Context()))
	})
}

// countingReader counts the bytes read from a request body.
type countingReader struct {
	io.ReadCloser
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	if c.ReadCloser == nil {
		return 0, io.EOF
	}
	n, err := c.ReadCloser.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) Close() error {
	if c.ReadCloser == nil {
		return nil
	}
	return c.ReadCloser.Close()
}
