// Package survey provides the survey manifest: a JSON sidecar listing a
// flight's orthomap and photos with their cached homographies.
package survey

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"argos/internal/homography"
	"argos/internal/region"
)

var ErrUnknownImage = errors.New("unknown image")

// File is a survey manifest (.argos.json). Paths are stored relative to the
// manifest. Methods are safe for concurrent use.
type File struct {
	mu sync.Mutex

	Version    int                                  `json:"version"`
	MapID      string                               `json:"map_id"`
	Created    time.Time                            `json:"created"`
	Modified   time.Time                            `json:"modified"`
	MapPath    string                               `json:"path_to_geomap,omitempty"`
	Boundaries map[region.BoundarySet]region.Bounds `json:"boundaries,omitempty"`
	Images     []*Image                             `json:"images"`
}

// Image is one photo of the flight.
type Image struct {
	ID         string                 `json:"image_id"`
	Path       string                 `json:"path_to_image"`
	Homography *homography.Homography `json:"homography,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Registered reports whether a valid homography is cached for the photo.
func (i *Image) Registered() bool { return i.Homography != nil && i.Homography.Valid() }

// New creates an empty manifest for a flight.
func New(mapID string) *File {
	now := time.Now()
	return &File{
		Version:  1,
		MapID:    mapID,
		Created:  now,
		Modified: now,
	}
}

// Load loads a manifest.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Save writes the manifest, replacing any existing file.
func (f *File) Save(path string) error {
	f.mu.Lock()
	f.Modified = time.Now()
	data, err := json.MarshalIndent(f, "", "  ")
	f.mu.Unlock()
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func relTo(manifestPath, target string) string {
	rel, err := filepath.Rel(filepath.Dir(manifestPath), target)
	if err != nil {
		return target
	}
	return rel
}

func absFrom(manifestPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(manifestPath), p)
}

// SetMap sets the orthomap path.
func (f *File) SetMap(manifestPath, mapPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MapPath = relTo(manifestPath, mapPath)
	f.Modified = time.Now()
}

// GetMapPath returns the absolute path to the orthomap.
func (f *File) GetMapPath(manifestPath string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return absFrom(manifestPath, f.MapPath)
}

// GetImagePath returns the absolute path to a photo.
func (f *File) GetImagePath(manifestPath string, img *Image) string {
	return absFrom(manifestPath, img.Path)
}

// Map returns the flight's map record.
func (f *File) Map() region.Map {
	f.mu.Lock()
	defer f.mu.Unlock()
	return region.Map{ID: f.MapID, GeoPath: f.MapPath, Boundaries: f.Boundaries}
}

// AddImage registers a DJI photo, deriving its image ID from the file name.
// Adding a photo twice returns the existing entry.
func (f *File) AddImage(manifestPath, photoPath string) (*Image, error) {
	id, err := region.ImageIDForPhoto(f.MapID, photoPath)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range f.Images {
		if img.ID == id {
			return img, nil
		}
	}
	img := &Image{ID: id, Path: relTo(manifestPath, photoPath)}
	f.Images = append(f.Images, img)
	sort.Slice(f.Images, func(i, j int) bool { return f.Images[i].ID < f.Images[j].ID })
	f.Modified = time.Now()
	return img, nil
}

// Image returns a copy of the entry for id.
func (f *File) Image(id string) (Image, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range f.Images {
		if img.ID == id {
			return *img, true
		}
	}
	return Image{}, false
}

// SetBoundaries records one boundary set of the map.
func (f *File) SetBoundaries(name region.BoundarySet, b region.Bounds) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Boundaries == nil {
		f.Boundaries = make(map[region.BoundarySet]region.Bounds)
	}
	f.Boundaries[name] = b
	f.Modified = time.Now()
}

// AllImages returns copies of every photo entry.
func (f *File) AllImages() []Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Image, len(f.Images))
	for i, img := range f.Images {
		out[i] = *img
	}
	return out
}

// Pending returns copies of the photos without a cached homography.
func (f *File) Pending() []Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Image
	for _, img := range f.Images {
		if !img.Registered() {
			out = append(out, *img)
		}
	}
	return out
}

// SetHomography caches the homography of a photo and clears any error.
func (f *File) SetHomography(id string, h homography.Homography) error {
	return f.update(id, func(img *Image) {
		img.Homography = &h
		img.Error = ""
	})
}

// SetError records why a photo could not be registered.
func (f *File) SetError(id string, err error) error {
	return f.update(id, func(img *Image) {
		img.Homography = nil
		img.Error = err.Error()
	})
}

func (f *File) update(id string, fn func(*Image)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range f.Images {
		if img.ID == id {
			fn(img)
			f.Modified = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownImage, id)
}
