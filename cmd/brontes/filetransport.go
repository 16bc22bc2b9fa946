package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/mev-core/brontes/store"
)

// fileTransport implements store.Transport over a plain local directory.
// No object-store SDK appears anywhere in the dependency pack, so this
// stays a thin os.* wrapper rather than reaching for an out-of-pack cloud
// client; an operator who needs S3/GCS fronts this directory with their
// own sync tool.
type fileTransport struct{ dir string }

func newFileTransport(dir string) fileTransport { return fileTransport{dir: dir} }

func (t fileTransport) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(t.dir, key))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func (t fileTransport) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(t.dir, key))
}

var _ store.Transport = fileTransport{}
