package region

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// BoundarySet names one of the extents recorded for a map.
type BoundarySet string

const (
	// BoundaryDisplay is the extent of the downscaled map shown to users.
	BoundaryDisplay BoundarySet = "small_map_boundaries"
	// BoundaryRaw is the extent of the full-resolution orthomap.
	BoundaryRaw BoundarySet = "map_boundaries"
)

// Map is a survey flight's orthomap.
type Map struct {
	ID         string                 `json:"map_id"`
	GeoPath    string                 `json:"path_to_geomap,omitempty"`
	Boundaries map[BoundarySet]Bounds `json:"boundaries,omitempty"`
	Rows       int                    `json:"geo_rows,omitempty"`
	Cols       int                    `json:"geo_cols,omitempty"`
}

// Region returns the unit region of the named boundary set.
func (m Map) Region(name BoundarySet) (UnitRegion, error) {
	b, ok := m.Boundaries[name]
	if !ok {
		return UnitRegion{}, fmt.Errorf("%w: map %s has no %s", ErrNoBoundaries, m.ID, name)
	}
	return NewUnitRegion(b)
}

// Tile is a square cut from a map.
type Tile struct {
	ID     string `json:"tile_id"`
	Path   string `json:"path_to_tile,omitempty"`
	Bounds Bounds `json:"bounds"`
}

// MapID returns the ID of the map the tile was cut from.
func (t Tile) MapID() string { return ParentID(t.ID) }

// Region returns the tile's unit region.
func (t Tile) Region() (UnitRegion, error) {
	if t.Bounds == (Bounds{}) {
		return UnitRegion{}, fmt.Errorf("%w: tile %s", ErrNoBoundaries, t.ID)
	}
	return NewUnitRegion(t.Bounds)
}

// Image is a raw photo taken during a survey flight.
type Image struct {
	ID string `json:"image_id"`
}

// MapID returns the ID of the map the photo belongs to.
func (i Image) MapID() string { return ParentID(i.ID) }

// ParentID drops the last "-" separated segment of an identifier.
func ParentID(id string) string {
	if i := strings.LastIndex(id, "-"); i >= 0 {
		return id[:i]
	}
	return ""
}

// MapKey is the parsed form of a map ID, YYYY-MM-DD-site-altitude.
type MapKey struct {
	Date     time.Time
	Site     string
	Altitude int
}

// String formats the key back into a map ID.
func (k MapKey) String() string {
	return fmt.Sprintf("%s-%s-%d", k.Date.Format("2006-01-02"), k.Site, k.Altitude)
}

// Root returns the directory of the flight relative to the survey depot.
func (k MapKey) Root() string {
	return path.Join(k.Date.Format("2006"), k.Date.Format("01"), k.Date.Format("02"), k.Site, strconv.Itoa(k.Altitude))
}

// MapPath returns the orthomap path of the flight relative to the depot.
func (k MapKey) MapPath() string { return path.Join(k.Root(), "maps", "map.tif") }

// ParseMapID parses a map ID.
func ParseMapID(id string) (MapKey, error) {
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		return MapKey{}, fmt.Errorf("%w: map id %q", ErrBadIdentifier, id)
	}
	date, err := time.Parse("2006-01-02", strings.Join(parts[:3], "-"))
	if err != nil {
		return MapKey{}, fmt.Errorf("%w: map id %q: %v", ErrBadIdentifier, id, err)
	}
	alt, err := strconv.Atoi(parts[4])
	if err != nil || parts[3] == "" {
		return MapKey{}, fmt.Errorf("%w: map id %q", ErrBadIdentifier, id)
	}
	return MapKey{Date: date, Site: parts[3], Altitude: alt}, nil
}

var (
	imageSuffix = regexp.MustCompile(`^IMG_(\d+)$`)
	tileSuffix  = regexp.MustCompile(`^TILE_(\d+)_(\d+)$`)
	photoName   = regexp.MustCompile(`DJI_(\d+)\.JPG$`)
)

// ImageKey is the parsed form of an image ID, <map id>-IMG_nnnn.
type ImageKey struct {
	Map    MapKey
	Number int
}

// ID formats the key back into an image ID.
func (k ImageKey) ID() string { return fmt.Sprintf("%s-IMG_%04d", k.Map, k.Number) }

// PhotoPath returns the raw photo path relative to the depot.
func (k ImageKey) PhotoPath() string {
	return path.Join(k.Map.Root(), "images", fmt.Sprintf("DJI_%04d.JPG", k.Number))
}

// ParseImageID parses an image ID.
func ParseImageID(id string) (ImageKey, error) {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return ImageKey{}, fmt.Errorf("%w: image id %q", ErrBadIdentifier, id)
	}
	m := imageSuffix.FindStringSubmatch(id[i+1:])
	if m == nil {
		return ImageKey{}, fmt.Errorf("%w: image id %q", ErrBadIdentifier, id)
	}
	mk, err := ParseMapID(id[:i])
	if err != nil {
		return ImageKey{}, err
	}
	n, _ := strconv.Atoi(m[1])
	return ImageKey{Map: mk, Number: n}, nil
}

// ImageIDForPhoto derives the image ID of a DJI photo file in a flight.
func ImageIDForPhoto(mapID, photoPath string) (string, error) {
	mk, err := ParseMapID(mapID)
	if err != nil {
		return "", err
	}
	m := photoName.FindStringSubmatch(photoPath)
	if m == nil {
		return "", fmt.Errorf("%w: photo name %q", ErrBadIdentifier, photoPath)
	}
	n, _ := strconv.Atoi(m[1])
	return ImageKey{Map: mk, Number: n}.ID(), nil
}

// TileKey is the parsed form of a tile ID, <map id>-TILE_tttt_nnnn.
type TileKey struct {
	Map    MapKey
	Source int // index of the source tile within the map
	Index  int // 1-based index of the sub-tile within the source tile
}

// ID formats the key back into a tile ID.
func (k TileKey) ID() string { return fmt.Sprintf("%s-TILE_%04d_%04d", k.Map, k.Source, k.Index) }

// ParseTileID parses a tile ID.
func ParseTileID(id string) (TileKey, error) {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return TileKey{}, fmt.Errorf("%w: tile id %q", ErrBadIdentifier, id)
	}
	m := tileSuffix.FindStringSubmatch(id[i+1:])
	if m == nil {
		return TileKey{}, fmt.Errorf("%w: tile id %q", ErrBadIdentifier, id)
	}
	mk, err := ParseMapID(id[:i])
	if err != nil {
		return TileKey{}, err
	}
	src, _ := strconv.Atoi(m[1])
	idx, _ := strconv.Atoi(m[2])
	return TileKey{Map: mk, Source: src, Index: idx}, nil
}
