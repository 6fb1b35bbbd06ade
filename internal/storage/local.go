package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/legal-docs/constants"
)

var ErrFileTooLarge = errors.New("file exceeds upload size limit")

// StoredFile describes bytes written by LocalStore.Save.
type StoredFile struct {
	Name   string // generated name under the upload dir
	Path   string
	Ext    string // normalized, no dot
	Size   int64
	SHA256 string
}

// LocalStore keeps uploaded bytes under one directory, each file named by a
// fresh UUID plus the original extension so client names never collide.
type LocalStore struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

func NewLocalStore(dir string, maxBytes int64, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = constants.MaxUploadBytes
	}
	return &LocalStore{dir: abs, maxBytes: maxBytes, logger: logger}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// Save copies r to a new file. It fails with ErrFileTooLarge, leaving
// nothing behind, when r holds more than the configured limit.
func (s *LocalStore) Save(originalName string, r io.Reader) (StoredFile, error) {
	ext := constants.NormalizeExt(filepath.Ext(originalName))
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return StoredFile{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(r, s.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return StoredFile{}, fmt.Errorf("write upload: %w", err)
	}
	if n > s.maxBytes {
		return StoredFile{}, ErrFileTooLarge
	}

	dst := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return StoredFile{}, fmt.Errorf("store upload: %w", err)
	}

	out := StoredFile{Name: name, Path: dst, Ext: ext, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}
	s.logger.Info("storage.save.ok", "name", name, "original", originalName, "size", n, "sha256", out.SHA256)
	return out, nil
}

// Path resolves a stored name. Names that would escape the directory are
// rejected.
func (s *LocalStore) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid stored file name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Delete removes a stored file. A file that is already gone is not an error.
func (s *LocalStore) Delete(name string) error {
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	s.logger.Info("storage.delete.ok", "name", name)
	return nil
}
