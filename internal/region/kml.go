package region

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadKML returns the first LatLonBox found in a KML document, as written by
// photogrammetry tools next to exported map tiles.
func ReadKML(r io.Reader) (Bounds, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return Bounds{}, fmt.Errorf("%w: no LatLonBox in kml", ErrNoBoundaries)
		}
		if err != nil {
			return Bounds{}, fmt.Errorf("parse kml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "LatLonBox" {
			continue
		}
		var box struct {
			North string `xml:"north"`
			South string `xml:"south"`
			East  string `xml:"east"`
			West  string `xml:"west"`
		}
		if err := dec.DecodeElement(&box, &se); err != nil {
			return Bounds{}, fmt.Errorf("parse LatLonBox: %w", err)
		}
		var b Bounds
		for _, f := range []struct {
			name string
			raw  string
			dst  *float64
		}{
			{"north", box.North, &b.North},
			{"south", box.South, &b.South},
			{"east", box.East, &b.East},
			{"west", box.West, &b.West},
		} {
			v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
			if err != nil {
				return Bounds{}, fmt.Errorf("LatLonBox %s %q: %w", f.name, f.raw, err)
			}
			*f.dst = v
		}
		if err := b.Validate(); err != nil {
			return Bounds{}, err
		}
		return b, nil
	}
}

// ReadKMLFile parses the KML file at path.
func ReadKMLFile(path string) (Bounds, error) {
	f, err := os.Open(path)
	if err != nil {
		return Bounds{}, err
	}
	defer f.Close()
	b, err := ReadKML(f)
	if err != nil {
		return Bounds{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// SubTile is one square of a tile split by SplitBounds.
type SubTile struct {
	Index    int // 1-based, column-major
	Row, Col int
	Bounds   Bounds
}

// SplitBounds cuts a width×height pixel tile spanning b into size×size
// squares, dropping partial squares at the right and bottom edges. Each
// square's bounds are the coordinates of its first and last pixel rows and
// columns, with coordinates spaced linearly from edge to edge of b.
func SplitBounds(b Bounds, width, height, size int) []SubTile {
	if size <= 0 || width < size || height < size {
		return nil
	}
	lat := linspace(b.North, b.South, height)
	lon := linspace(b.West, b.East, width)

	var out []SubTile
	for c := 0; c < width/size; c++ {
		west, east := lon[c*size], lon[(c+1)*size-1]
		for r := 0; r < height/size; r++ {
			out = append(out, SubTile{
				Index: len(out) + 1,
				Row:   r,
				Col:   c,
				Bounds: Bounds{
					North: lat[r*size],
					South: lat[(r+1)*size-1],
					West:  west,
					East:  east,
				},
			})
		}
	}
	return out
}

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
