package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const metaSuffix = ".meta"

// Filesystem stores objects as files under root with a JSON sidecar holding
// the object attributes.
type Filesystem struct {
	root string
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewFilesystem roots a store at root, creating the directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) Driver() Driver { return DriverFilesystem }

// Root returns the directory objects are written under.
func (f *Filesystem) Root() string { return f.root }

func sanitizeKey(key string) (string, error) {
	switch {
	case strings.TrimSpace(key) == "":
		return "", fmt.Errorf("empty key")
	case strings.Contains(key, ".."):
		return "", fmt.Errorf("invalid key %q: contains '..'", key)
	case strings.HasPrefix(key, "/"):
		return "", fmt.Errorf("invalid key %q: absolute", key)
	case strings.HasSuffix(key, metaSuffix):
		return "", fmt.Errorf("invalid key %q: reserved suffix", key)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func (f *Filesystem) paths(key string) (string, string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	data := filepath.Join(f.root, filepath.FromSlash(clean))
	return data, data + metaSuffix, nil
}

func (f *Filesystem) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, fmt.Errorf("put %s: %w", key, ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o750); err != nil {
		return Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Info{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Info{}, err
	}
	meta := sidecar{
		ContentType: opts.ContentType,
		Metadata:    cloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return Info{}, err
	}
	if err := os.WriteFile(metaPath, raw, 0o600); err != nil {
		return Info{}, err
	}
	return meta.info(key), nil
}

func (f *Filesystem) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return Info{}, nil, err
	}
	file, err := os.Open(dataPath) // #nosec G304 -- key sanitized above
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Info{}, nil, err
	}
	meta, err := readSidecar(metaPath)
	if err != nil {
		_ = file.Close()
		return Info{}, nil, err
	}
	return meta.info(key), file, nil
}

func (f *Filesystem) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

func (f *Filesystem) List(_ context.Context, prefix string) ([]Info, error) {
	var infos []Info
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(f.root, strings.TrimSuffix(path, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, err := readSidecar(path)
		if err != nil {
			return err
		}
		infos = append(infos, meta.info(key))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// PresignURL returns an unauthenticated file URL for local development.
func (f *Filesystem) PresignURL(_ context.Context, key string, opts SignedURLOptions) (string, error) {
	if err := presignMethod(opts); err != nil {
		return "", err
	}
	dataPath, _, err := f.paths(key)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dataPath)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func (s sidecar) info(key string) Info {
	return Info{
		Key:          key,
		Size:         s.Size,
		ContentType:  s.ContentType,
		ETag:         s.ETag,
		Metadata:     cloneMetadata(s.Metadata),
		LastModified: s.CreatedAt,
	}
}

func readSidecar(path string) (sidecar, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- derived from a sanitized key
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return meta, nil
}
