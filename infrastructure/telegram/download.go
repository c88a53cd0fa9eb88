package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"telegram-drive-relay/domain/messaging"
)

const copyBufferSize = 256 * 1024

// StreamDownload implements messaging.Transport. A local Bot API server
// reports absolute paths; those are read straight from disk.
func (c *Client) StreamDownload(ctx context.Context, h messaging.FileHandle, dst io.Writer, onProgress messaging.ProgressFunc) error {
	if filepath.IsAbs(h.Location) {
		return c.copyLocal(ctx, h, dst, onProgress)
	}

	url := fmt.Sprintf(c.cfg.FileEndpoint, c.cfg.Token, h.Location)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", redact(err, c.cfg.Token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", h.Location, redact(err, c.cfg.Token))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %w: %s", h.Location, ErrUnexpectedStatus, resp.Status)
	}

	total := h.Size
	if resp.ContentLength > 0 && uint64(resp.ContentLength) > total {
		total = uint64(resp.ContentLength)
	}
	return copyWithProgress(ctx, dst, resp.Body, total, onProgress)
}

func (c *Client) copyLocal(ctx context.Context, h messaging.FileHandle, dst io.Writer, onProgress messaging.ProgressFunc) error {
	f, err := os.Open(h.Location)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()

	total := h.Size
	if info, err := f.Stat(); err == nil && uint64(info.Size()) > total {
		total = uint64(info.Size())
	}
	return copyWithProgress(ctx, dst, f, total, onProgress)
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total uint64, onProgress messaging.ProgressFunc) error {
	pw := &progressWriter{ctx: ctx, dst: dst, total: total, onProgress: onProgress}
	if _, err := io.CopyBuffer(pw, src, make([]byte, copyBufferSize)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// progressWriter reports the running byte count after every write and
// stops the copy once ctx is done
type progressWriter struct {
	ctx        context.Context
	dst        io.Writer
	written    uint64
	total      uint64
	onProgress messaging.ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := w.dst.Write(p)
	w.written += uint64(n)
	if w.written > w.total {
		w.total = w.written
	}
	if w.onProgress != nil && n > 0 {
		w.onProgress(w.written, w.total)
	}
	return n, err
}
