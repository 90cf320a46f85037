package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/renameio/v2"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Artifacts are the files captured for a failed test. Empty paths were not
// captured.
type Artifacts struct {
	Dir        string `json:"dir"`
	Screenshot string `json:"screenshot,omitempty"`
	PageSource string `json:"page_source,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Attributes returns the artifact paths as event attributes.
func (a *Artifacts) Attributes() map[string]string {
	attrs := make(map[string]string, 3)
	if a.Screenshot != "" {
		attrs["screenshot"] = a.Screenshot
	}
	if a.PageSource != "" {
		attrs["pageSource"] = a.PageSource
	}
	if a.URL != "" {
		attrs["url"] = a.URL
	}
	return attrs
}

// ArtifactWriter saves failure artifacts under one directory per test.
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
	}
}

// OutputDir returns the artifact root.
func (w *ArtifactWriter) OutputDir() string {
	return w.outputDir
}

// Capture saves a screenshot, the page source and the current URL of the
// accessor's session. Capture is best-effort: whatever could be saved is
// returned along with the joined errors of the rest.
func (w *ArtifactWriter) Capture(acc SessionAccessor, testID string) (*Artifacts, error) {
	s := acc.Session()
	if s == nil || s.Page() == nil {
		return nil, fmt.Errorf("no session to capture artifacts from")
	}
	page := s.Page()

	dir := filepath.Join(w.outputDir, unsafeFileChars.ReplaceAllString(testID, "_"))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	arts := &Artifacts{Dir: dir}

	var errs []error

	if png, err := page.Screenshot(); err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %w", err))
	} else if path, err := writeAtomic(filepath.Join(dir, "screenshot.png"), png); err != nil {
		errs = append(errs, err)
	} else {
		arts.Screenshot = path
	}

	if html, err := page.Content(); err != nil {
		errs = append(errs, fmt.Errorf("page source: %w", err))
	} else if path, err := writeAtomic(filepath.Join(dir, "page.html"), []byte(html)); err != nil {
		errs = append(errs, err)
	} else {
		arts.PageSource = path
	}

	if url := page.URL(); url != "" {
		if path, err := writeAtomic(filepath.Join(dir, "url.txt"), []byte(url+"\n")); err != nil {
			errs = append(errs, err)
		} else {
			arts.URL = path
		}
	}

	return arts, errors.Join(errs...)
}

// writeAtomic replaces path with data so readers never see a partial file.
func writeAtomic(path string, data []byte) (string, error) {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644))
	if err != nil {
		return "", fmt.Errorf("create pending file %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("atomically replace %s: %w", filepath.Base(path), err)
	}
	return path, nil
}
