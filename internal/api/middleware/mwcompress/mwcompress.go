//nolint:revive // exported
package mwcompress

import (
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type compressWriter struct {
	http.ResponseWriter
	w io.Writer
}

func (cw *compressWriter) Write(p []byte) (int, error) {
	return cw.w.Write(p)
}

// New negotiates response compression from Accept-Encoding. zstd wins over
// gzip when the client offers both; anything else passes through identity.
func New() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accept := r.Header.Get("Accept-Encoding")
			switch {
			case strings.Contains(accept, "zstd"):
				zw, err := zstd.NewWriter(w)
				if err != nil {
					next.ServeHTTP(w, r)
					return
				}
				defer zw.Close()
				w.Header().Set("Content-Encoding", "zstd")
				w.Header().Del("Content-Length")
				next.ServeHTTP(&compressWriter{ResponseWriter: w, w: zw}, r)
			case strings.Contains(accept, "gzip"):
				gw := gzip.NewWriter(w)
				defer gw.Close()
				w.Header().Set("Content-Encoding", "gzip")
				w.Header().Del("Content-Length")
				next.ServeHTTP(&compressWriter{ResponseWriter: w, w: gw}, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
