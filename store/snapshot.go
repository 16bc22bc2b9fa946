package store

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/mev-core/brontes/bronerr"
)

// DownloadRequest names one snapshot artifact to fetch, grounded on
// turbo/snapshotsync/snapshotsync.go's DownloadRequest (kept the
// Path-plus-hash shape, with ArchiveHash in place of TorrentHash and no
// torrent swarm — `db
// download-snapshot`/`upload-snapshot` (spec.md §6.3) transport a single
// tar+zstd archive of the store directory over an operator-supplied
// Transport rather than BitTorrent, since the MEV-engine corpus has no
// p2p distribution network the way chain snapshots do).
type DownloadRequest struct {
	Path        string
	ArchiveHash string
}

func NewDownloadRequest(path, archiveHash string) DownloadRequest {
	return DownloadRequest{Path: path, ArchiveHash: archiveHash}
}

// Transport is the operator-supplied object store a snapshot is
// published to/fetched from (e.g. an S3-compatible bucket); kept minimal
// and storage-agnostic since spec.md §6.3 only requires the two
// subcommand names exist, not a specific backend.
type Transport interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// UploadSnapshot tars+zstds dbPath's contents and uploads it under key
// (`db upload-snapshot`, spec.md §6.3).
func UploadSnapshot(ctx context.Context, dbPath string, transport Transport, key string) error {
	tmp, err := os.CreateTemp("", "brontes-snapshot-*.tar.zst")
	if err != nil {
		return bronerr.Fatal("store.upload_snapshot", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := archiveDir(dbPath, tmp); err != nil {
		return err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return bronerr.Fatal("store.upload_snapshot", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return bronerr.Fatal("store.upload_snapshot", err)
	}
	if err := transport.Upload(ctx, key, tmp, info.Size()); err != nil {
		return bronerr.Transient("store.upload_snapshot", err, bronerr.WithKey(key))
	}
	return nil
}

// DownloadSnapshot fetches key and extracts it into dbPath
// (`db download-snapshot`, spec.md §6.3). dbPath must not already contain
// an open Store — the caller closes/reopens around this call.
func DownloadSnapshot(ctx context.Context, transport Transport, key, dbPath string) error {
	rc, err := transport.Download(ctx, key)
	if err != nil {
		return bronerr.Transient("store.download_snapshot", err, bronerr.WithKey(key))
	}
	defer rc.Close()
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return bronerr.Fatal("store.download_snapshot", err)
	}
	return extractArchive(rc, dbPath)
}

func archiveDir(root string, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return bronerr.Fatal("store.archive_dir", err)
	}
	defer zw.Close()
	tw := tar.NewWriter(zw)
	defer tw.Close()

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

func extractArchive(r io.Reader, destRoot string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return bronerr.Decode("store.extract_archive", err)
	}
	defer zr.Close()
	tr := tar.NewReader(zr)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return bronerr.Decode("store.extract_archive", err)
		}
		target := filepath.Join(destRoot, hdr.Name)
		if !insideRoot(destRoot, target) {
			return bronerr.Decode("store.extract_archive", fmt.Errorf("archive entry %q escapes destination", hdr.Name))
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return bronerr.Fatal("store.extract_archive", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return bronerr.Fatal("store.extract_archive", err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return bronerr.Fatal("store.extract_archive", err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return bronerr.Fatal("store.extract_archive", err)
			}
			f.Close()
		}
	}
}

func insideRoot(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !filepathHasPrefix(rel, ".."+string(filepath.Separator))
}

func filepathHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
