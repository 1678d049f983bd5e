package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
)

var ErrFileTooLarge = errors.New("file exceeds size limit")

// Downloader fetches uploaded files with a deadline, a size cap and a bound on
// concurrent transfers.
type Downloader struct {
	client  *http.Client
	sem     *semaphore.Weighted
	maxSize int64
	timeout time.Duration
}

func NewDownloader(timeout time.Duration, maxSize, maxConcurrent int64) *Downloader {
	return &Downloader{
		client:  &http.Client{},
		sem:     semaphore.NewWeighted(maxConcurrent),
		maxSize: maxSize,
		timeout: timeout,
	}
}

func (d *Downloader) MaxSize() int64 {
	return d.maxSize
}

// Fetch downloads url. Waiting for a free slot counts against the timeout.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for download slot: %w", err)
	}
	defer d.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}
	if resp.ContentLength > d.maxSize {
		return nil, ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if int64(len(data)) > d.maxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
