package api

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
)

// DecompressMiddleware decodes brotli and deflate bodies. gzip is already decoded by resty.
func DecompressMiddleware(c *resty.Client, resp *resty.Response) error {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header().Get("Content-Encoding")))
	if encoding == "" || len(resp.Body()) == 0 {
		return nil
	}

	var reader io.Reader
	switch encoding {
	case "br":
		reader = brotli.NewReader(bytes.NewReader(resp.Body()))
	case "deflate":
		zr, err := zlib.NewReader(bytes.NewReader(resp.Body()))
		if err != nil {
			return fmt.Errorf("deflate body: %w", err)
		}
		defer zr.Close()
		reader = zr
	default:
		return nil
	}

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("%s body: %w", encoding, err)
	}

	resp.SetBody(decompressed)
	resp.Header().Del("Content-Encoding")
	return nil
}
