// Package filecam implements media.Camera over a directory of still
// images. It exists for environments without camera hardware: site
// photos dropped into a directory are cycled through as "frames".
package filecam

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/buildlink-za/sitevoice/pkg/media"
)

// Camera cycles through the images found in Dir.
type Camera struct {
	Dir string
}

var _ media.Camera = (*Camera)(nil)

// Open lists the image files in Dir. An empty or missing directory is a
// device-unavailable condition for the caller to map.
func (c *Camera) Open(ctx context.Context) (media.FrameSource, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("filecam: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(c.Dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("filecam: no images in %s", c.Dir)
	}
	return &FrameSource{paths: paths}, nil
}

// FrameSource yields the directory's images in order, wrapping around.
type FrameSource struct {
	mu     sync.Mutex
	paths  []string
	next   int
	closed bool
}

// Grab decodes and returns the next image.
func (f *FrameSource) Grab(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, fmt.Errorf("filecam: closed")
	}
	path := f.paths[f.next%len(f.paths)]
	f.next++
	f.mu.Unlock()

	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("filecam: %w", err)
	}
	defer r.Close()
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("filecam: decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Close marks the source closed. Idempotent.
func (f *FrameSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
