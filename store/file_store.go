package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// fileNames maps artifact kinds to file names inside a video directory
var fileNames = map[Kind]string{
	KindDetections: "detections_all.jsonl",
	KindTracks:     "tracks.json",
	KindFindings:   "faults.json",
}

// FileStore keeps artifacts as files: <root>/<video>/<file>
type FileStore struct {
	root string
}

// NewFileStore creates root directory if needed
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "Can't create store root %s", root)
	}
	return &FileStore{root: root}, nil
}

// Path returns file location of the artifact
func (s *FileStore) Path(videoRef string, kind Kind) string {
	return filepath.Join(s.root, videoRef, fileNames[kind])
}

func (s *FileStore) Exists(ctx context.Context, videoRef string, kind Kind) (bool, error) {
	if err := validate(videoRef, kind); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(videoRef, kind))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "Can't stat artifact")
}

func (s *FileStore) Get(ctx context.Context, videoRef string, kind Kind) ([]byte, error) {
	if err := validate(videoRef, kind); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(videoRef, kind))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "%s/%s", videoRef, kind)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Can't read artifact")
	}
	return data, nil
}

// Put writes the artifact through a temporary file and a hard link, so readers
// never observe partial content and an existing artifact is never replaced.
func (s *FileStore) Put(ctx context.Context, videoRef string, kind Kind, body []byte) error {
	if err := validate(videoRef, kind); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(s.root, videoRef)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "Can't create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+fileNames[kind]+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "Can't create temporary file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return errors.Wrap(err, "Can't write temporary file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "Can't sync temporary file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "Can't close temporary file")
	}
	if err := os.Link(tmpName, s.Path(videoRef, kind)); err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(ErrExists, "%s/%s", videoRef, kind)
		}
		return errors.Wrap(err, "Can't publish artifact")
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
