package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var gzipWriters = sync.Pool{
	New: func() any {
		return gzip.NewWriter(io.Discard)
	},
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	wroteHeader bool
	compress    bool
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.compress = statusCode != http.StatusNoContent && statusCode != http.StatusNotModified
	if w.compress {
		w.Header().Del("Content-Length")
		w.Header().Set("Content-Encoding", "gzip")
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if !w.compress {
		return w.ResponseWriter.Write(b)
	}
	return w.gz.Write(b)
}

func (w *gzipResponseWriter) close() {
	if w.compress {
		_ = w.gz.Close()
	}
}

type gzipReader struct {
	io.ReadCloser
	gz *gzip.Reader
}

func (r *gzipReader) Read(p []byte) (int, error) {
	return r.gz.Read(p)
}

func (r *gzipReader) Close() error {
	if err := r.gz.Close(); err != nil {
		return err
	}
	return r.ReadCloser.Close()
}

// GzipMiddleware распаковывает тело запроса с Content-Encoding: gzip и сжимает ответ,
// если клиент его принимает.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			r.Body = &gzipReader{ReadCloser: r.Body, gz: gz}
			r.Header.Del("Content-Encoding")
			r.Header.Del("Content-Length")
		}

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		gz := gzipWriters.Get().(*gzip.Writer)
		gz.Reset(w)
		gw := &gzipResponseWriter{ResponseWriter: w, gz: gz}
		defer func() {
			gw.close()
			gz.Reset(io.Discard)
			gzipWriters.Put(gz)
		}()

		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gw, r)
	})
}
