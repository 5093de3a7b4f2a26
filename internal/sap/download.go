// internal/sap/download.go
package sap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "asset-migrator/internal/common/errors"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/common/metrics"
)

const (
	downloadBufferSize = 20480
	progressInterval   = 10 * time.Second
)

// DownloadSequential streams a large export file to w, resuming with byte
// Range requests when the connection drops before Content-Length is reached.
// A 401 mid-download invalidates the cached token and retries the same range;
// the If-Match header pins the resumed parts to the ETag of the first part.
func (c *Client) DownloadSequential(ctx context.Context, rawURL string, w io.Writer, log logger.Logger) (int64, error) {
	started := time.Now()

	resp, err := c.Do(ctx, http.MethodGet, rawURL, nil, nil, map[string]string{
		"Accept": "application/octet-stream",
	})
	if err != nil {
		return 0, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return 0, apperrors.NewAPIError(rawURL, resp.StatusCode, string(body))
	}

	total := resp.ContentLength
	ifMatch := resp.Header.Get("Etag")

	progress := newProgressTracker(total, log)
	count, err := copyChunks(w, resp.Body, progress)
	resp.Body.Close()
	if err != nil && count == 0 {
		return count, err
	}

	part := 1
	for total > 0 && count < total {
		part++
		log.Info("resuming download", map[string]interface{}{
			"part":       part,
			"downloaded": count,
			"total":      total,
		})

		headers := map[string]string{
			"Range": fmt.Sprintf("bytes=%d-%d", count, total),
		}
		if ifMatch != "" {
			headers["If-Match"] = ifMatch
		}

		resp, err := c.Do(ctx, http.MethodGet, rawURL, nil, nil, headers)
		if err != nil {
			return count, err
		}

		// Client.Do already retried one 401; a second one in a row means the
		// token expired mid-flight again, so refresh and retry the range.
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			c.tokens.Invalidate()
			part--
			continue
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return count, apperrors.NewAPIError(rawURL, resp.StatusCode, string(body))
		}

		n, err := copyChunks(w, resp.Body, progress)
		resp.Body.Close()
		count += n
		if err != nil && n == 0 {
			return count, err
		}
	}

	if total > 0 && count < total {
		return count, &apperrors.StandardError{
			Code:      apperrors.ErrCodeDownloadIncomplete,
			Message:   "Download ended before Content-Length was reached",
			Details:   fmt.Sprintf("downloaded %d of %d bytes", count, total),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}

	log.Info("download complete", map[string]interface{}{
		"bytes":   count,
		"minutes": time.Since(started).Minutes(),
	})
	return count, nil
}

// copyChunks copies in fixed-size chunks so progress can be reported while
// the body streams. A read error after partial progress is swallowed so the
// caller can resume from the byte count reached so far.
func copyChunks(w io.Writer, r io.Reader, progress *progressTracker) (int64, error) {
	buf := make([]byte, downloadBufferSize)
	var count int64

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return count, fmt.Errorf("failed to write download chunk: %w", werr)
			}
			count += int64(n)
			metrics.DownloadBytes.Add(float64(n))
			progress.advance(int64(n))
		}
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			if count > 0 {
				return count, nil
			}
			return count, fmt.Errorf("failed to read download chunk: %w", err)
		}
	}
}

type progressTracker struct {
	total      int64
	downloaded int64
	window     int64
	lastReport time.Time
	log        logger.Logger
}

func newProgressTracker(total int64, log logger.Logger) *progressTracker {
	return &progressTracker{total: total, lastReport: time.Now(), log: log}
}

func (p *progressTracker) advance(n int64) {
	p.downloaded += n
	p.window += n

	elapsed := time.Since(p.lastReport)
	if elapsed < progressInterval {
		return
	}

	fields := map[string]interface{}{
		"downloaded": p.downloaded,
		"speedKBps":  float64(p.window) / 1024 / elapsed.Seconds(),
	}
	if p.total > 0 {
		fields["percent"] = float64(p.downloaded) / float64(p.total) * 100
	}
	p.log.Info("download progress", fields)

	p.window = 0
	p.lastReport = time.Now()
}
