package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// Store is a scratch directory for rendered images plus a cache of their
// decoded form.
//
// Staging a file under a name that already exists overwrites it and evicts
// any cached copy, so a session that re-renders always reads back its latest
// plot.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	dir string

	mu     sync.RWMutex
	images map[string]image.Image
}

// NewStore creates dir if needed and returns a Store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Store{
		dir:    dir,
		images: make(map[string]image.Image),
	}, nil
}

// Dir returns the scratch directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns where name would be staged.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Stage writes data to the file name inside the scratch directory and
// returns its path. The write goes through a temporary file so readers never
// see a partial image.
func (s *Store) Stage(name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid scratch file name %q", name)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}

	path := s.Path(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to stage scratch file: %w", err)
	}
	s.Evict(path)
	return path, nil
}

// Load returns the decoded image at path, reading it from disk only on the
// first call. The cache is keyed by the exact path string.
func (s *Store) Load(path string) (image.Image, error) {
	s.mu.RLock()
	if img, ok := s.images[path]; ok {
		s.mu.RUnlock()
		return img, nil
	}
	s.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	s.mu.Lock()
	s.images[path] = img
	s.mu.Unlock()

	return img, nil
}

// Evict drops the cached copy of path, if any.
func (s *Store) Evict(path string) {
	s.mu.Lock()
	delete(s.images, path)
	s.mu.Unlock()
}

// Clear drops every cached image.
func (s *Store) Clear() {
	s.mu.Lock()
	s.images = make(map[string]image.Image)
	s.mu.Unlock()
}

// Remove clears the cache and deletes the scratch directory.
func (s *Store) Remove() error {
	s.Clear()
	return os.RemoveAll(s.dir)
}

// ImageInfo contains metadata about an image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is "png", "jpeg", "gif", or "unknown", from the file extension.
	Format string `json:"format"`

	// MimeType matches Format; "application/octet-stream" when unknown.
	MimeType string `json:"mime_type"`

	// HasAlpha reports whether the decoded image carries an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads path through s and describes it.
func LoadImageInfo(s *Store, path string) (*ImageInfo, error) {
	img, err := s.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format, mime := "unknown", "application/octet-stream"
	if f, err := imaging.FormatFromFilename(path); err == nil {
		switch f {
		case imaging.PNG, imaging.JPEG, imaging.GIF:
			format = strings.ToLower(f.String())
			mime = MimeType(f)
		}
	}

	hasAlpha := false
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.Paletted:
		hasAlpha = true
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		MimeType:      mime,
		HasAlpha:      hasAlpha,
		FileSizeBytes: stat.Size(),
	}, nil
}
