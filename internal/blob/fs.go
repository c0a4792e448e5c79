package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kona-ai/kona/internal/faults"
	"github.com/kona-ai/kona/internal/log"
)

const sidecarSuffix = ".meta.json"

// FSStore is a filesystem-backed Store. Each blob is a file under the root
// directory; its metadata lives in a JSON sidecar next to it.
type FSStore struct {
	root   string
	logger log.Logger
}

var _ Store = (*FSStore)(nil)

// NewFSStore creates the root directory if needed.
func NewFSStore(root string, logger log.Logger) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root %s: %w (%w)", root, err, faults.ErrIO)
	}
	return &FSStore{root: root, logger: logger}, nil
}

// path maps a slash-separated key onto the filesystem, rejecting traversal.
func (s *FSStore) path(key string) (string, error) {
	if key == "" || strings.HasSuffix(key, sidecarSuffix) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("blob key %q escapes store root", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FSStore) Put(ctx context.Context, key string, content []byte, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w (%w)", err, faults.ErrIO)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		return fmt.Errorf("writing blob %s: %w (%w)", key, err, faults.ErrIO)
	}
	if err := s.writeMeta(p, meta); err != nil {
		return err
	}
	s.logger.Debug("blob stored", "key", key, "bytes", len(content))
	return nil
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, nil, err
	}
	content, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("blob %s: %w", key, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("reading blob %s: %w (%w)", key, err, faults.ErrIO)
	}
	meta, err := s.readMeta(p)
	if err != nil {
		return nil, nil, err
	}
	return content, meta, nil
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, sidecarSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing blobs under %q: %w (%w)", prefix, err, faults.ErrIO)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) PatchMetadata(ctx context.Context, key string, patch map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("checking blob %s: %w (%w)", key, err, faults.ErrIO)
	}

	meta, err := s.readMeta(p)
	if err != nil {
		return err
	}
	if meta == nil {
		meta = make(map[string]string, len(patch))
	}
	for k, v := range patch {
		meta[k] = v
	}
	return s.writeMeta(p, meta)
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("deleting blob %s: %w (%w)", key, err, faults.ErrIO)
	}
	// A missing sidecar is fine; the blob is already gone.
	if err := os.Remove(p + sidecarSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob metadata %s: %w (%w)", key, err, faults.ErrIO)
	}
	return nil
}

func (s *FSStore) writeMeta(blobPath string, meta map[string]string) error {
	if meta == nil {
		meta = map[string]string{}
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding blob metadata: %w", err)
	}
	if err := os.WriteFile(blobPath+sidecarSuffix, raw, 0o644); err != nil {
		return fmt.Errorf("writing blob metadata: %w (%w)", err, faults.ErrIO)
	}
	return nil
}

func (s *FSStore) readMeta(blobPath string) (map[string]string, error) {
	raw, err := os.ReadFile(blobPath + sidecarSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading blob metadata: %w (%w)", err, faults.ErrIO)
	}
	var meta map[string]string
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decoding blob metadata: %w (%w)", err, faults.ErrParse)
	}
	return meta, nil
}
