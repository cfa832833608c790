package tooling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mholt/archives"
)

// Downloader fetches and unpacks tool archives into a process-shared cache
// directory. It is the only component in the tool manager that performs
// network I/O; Resolver.Resolve shares one call among concurrent callers
// for the same tool and constraint via its single-flight group, and does
// not call it again once a resolution has succeeded. A failed download is
// attempted afresh on the next Resolve.
type Downloader struct {
	client      *http.Client
	urlBase     string
	maxRetries  int
	retryDelay  time.Duration
}

// NewDownloader constructs a Downloader. urlBase is the configured
// downloads host (tooling.downloads_url), used to fill a Descriptor's
// DownloadURLTemplate when it is a relative path.
func NewDownloader(timeout time.Duration, maxRetries int, retryDelay time.Duration, urlBase string) *Downloader {
	return &Downloader{
		client:     &http.Client{Timeout: timeout},
		urlBase:    urlBase,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// FetchAndUnpack downloads d's archive, verifies its checksum if one is
// pinned, unpacks it into cacheDir/<name>, and returns the path to the
// extracted binary. The cache directory is not keyed by version, and the
// returned version string is always empty: the downloaded binary's version
// is neither probed nor derived from the descriptor's constraint.
func (dl *Downloader) FetchAndUnpack(ctx context.Context, cacheDir string, d Descriptor) (path, version string, err error) {
	if d.DownloadURLTemplate == "" {
		return "", "", fmt.Errorf("no download url configured for %s", d.Name)
	}

	url := d.DownloadURLTemplate
	if !strings.Contains(url, "://") {
		url = strings.TrimSuffix(dl.urlBase, "/") + "/" + strings.TrimPrefix(url, "/")
	}

	destDir := filepath.Join(cacheDir, string(d.Name))
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return "", "", fmt.Errorf("io: creating cache dir: %w", err)
	}

	archivePath := filepath.Join(destDir, "download.archive")
	var lastErr error
	for attempt := 0; attempt <= dl.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", "", ctx.Err()
			case <-time.After(dl.retryDelay):
			}
		}
		if err := dl.fetch(ctx, url, archivePath); err != nil {
			lastErr = fmt.Errorf("network: %w", err)
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return "", "", lastErr
	}

	if d.Checksum != "" {
		if err := verifyChecksum(archivePath, d.Checksum); err != nil {
			return "", "", err
		}
	}

	if err := unpack(ctx, archivePath, destDir); err != nil {
		return "", "", fmt.Errorf("io: unpacking %s: %w", d.Name, err)
	}

	binPath := filepath.Join(destDir, d.binaryName())
	if err := os.Chmod(binPath, 0750); err != nil {
		return "", "", fmt.Errorf("io: making %s executable: %w", d.Name, err)
	}

	return binPath, "", nil
}

func (dl *Downloader) fetch(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := dl.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func verifyChecksum(path, expectedHex string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("io: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("io: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != expectedHex {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", path, expectedHex, got)
	}
	return nil
}

// unpack extracts archivePath into destDir, auto-detecting the archive
// format (zip, tar.gz, tar.xz, ...) via mholt/archives.
func unpack(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	format, input, err := archives.Identify(ctx, archivePath, f)
	if err != nil {
		return fmt.Errorf("identifying archive format: %w", err)
	}

	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("format %T does not support extraction", format)
	}

	return extractor.Extract(ctx, input, func(ctx context.Context, fi archives.FileInfo) error {
		if fi.IsDir() {
			return nil
		}
		target := filepath.Join(destDir, filepath.Base(fi.NameInArchive))
		rc, err := fi.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, rc)
		return err
	})
}
