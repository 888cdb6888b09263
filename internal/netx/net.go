// Package netx holds small HTTP helpers for talking to object storage
// through presigned URLs.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxBlobBytes caps a presigned download. Hex blobs are twice the size of
// the document plus a small header.
const MaxBlobBytes = 64 << 20

// FetchPresignedURL downloads the object behind a presigned GET URL.
func FetchPresignedURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBlobBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBlobBytes {
		return nil, fmt.Errorf("download failed: object exceeds %d bytes", MaxBlobBytes)
	}
	return body, nil
}
