package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// FetchModel downloads the whisper model to path unless a file already exists there.
// The download goes to a temp file in the same directory and is renamed into place on success.
func FetchModel(ctx context.Context, client *http.Client, url, path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		slog.Info("whisper model already present", "path", path)
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat model: %w", err)
	}
	if url == "" {
		return false, errors.New("model url is empty")
	}
	if client == nil {
		client = http.DefaultClient
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create model dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	slog.Info("downloading whisper model", "url", url, "path", path)
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("download model: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("download model: unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.part")
	if err != nil {
		return false, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return false, fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, fmt.Errorf("install model: %w", err)
	}
	slog.Info("whisper model downloaded", "path", path, "bytes", n)
	return true, nil
}
