package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// ArtifactWriter stores record attachments under one directory.
type ArtifactWriter struct {
	outputDir string
	dir       string
}

// NewArtifactWriter creates the artifacts directory under outputDir.
func NewArtifactWriter(outputDir string) (*ArtifactWriter, error) {
	dir := filepath.Join(outputDir, ArtifactsDir)
	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}
	return &ArtifactWriter{outputDir: outputDir, dir: dir}, nil
}

// Dir returns the absolute artifacts directory.
func (w *ArtifactWriter) Dir() string { return w.dir }

// Save writes att.Body under the name in att.Path and returns the path
// relative to the output directory. An existing file is never overwritten:
// a -N suffix is added before the extension instead.
func (w *ArtifactWriter) Save(att core.Attachment) (string, error) {
	name := filepath.Base(att.Path)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("artifact %q has no file name", att.Name)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 0; n < 100; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		f, err := os.OpenFile(filepath.Join(w.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(att.Body); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return filepath.Join(ArtifactsDir, candidate), nil
	}
	return "", fmt.Errorf("artifact %s: too many name collisions", name)
}
