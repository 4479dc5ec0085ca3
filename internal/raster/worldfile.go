package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseWorldFile reads the six lines of an ESRI world file (.tfw, .jgw, .pgw)
// and returns the equivalent GDAL geotransform. World files reference the
// centre of the upper-left pixel; the result references its outer corner.
func ParseWorldFile(r io.Reader) (Affine, error) {
	var vals []float64
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if len(vals) == 6 {
			return Affine{}, fmt.Errorf("%w: more than 6 values", ErrWorldFile)
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return Affine{}, fmt.Errorf("%w: line %d: %v", ErrWorldFile, len(vals)+1, err)
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return Affine{}, err
	}
	if len(vals) != 6 {
		return Affine{}, fmt.Errorf("%w: expected 6 values, got %d", ErrWorldFile, len(vals))
	}

	xRes, ySkew, xSkew, yRes, cx, cy := vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]
	return Affine{
		cx - xRes/2 - xSkew/2,
		xRes,
		xSkew,
		cy - ySkew/2 - yRes/2,
		ySkew,
		yRes,
	}, nil
}

// ReadWorldFile parses the world file at path.
func ReadWorldFile(path string) (Affine, error) {
	f, err := os.Open(path)
	if err != nil {
		return Affine{}, err
	}
	defer f.Close()
	a, err := ParseWorldFile(f)
	if err != nil {
		return Affine{}, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// FindWorldFile returns the world-file sidecar of a raster, or "" if none
// exists. Both the three-letter (.tfw) and the extension+w (.tifw) forms are
// tried, in either case.
func FindWorldFile(rasterPath string) string {
	ext := filepath.Ext(rasterPath)
	base := strings.TrimSuffix(rasterPath, ext)
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return ""
	}

	var candidates []string
	if len(ext) >= 2 {
		short := ext[:1] + ext[len(ext)-1:] + "w"
		candidates = append(candidates, short)
	}
	candidates = append(candidates, ext+"w")
	for _, c := range candidates {
		for _, s := range []string{strings.ToLower(c), strings.ToUpper(c)} {
			p := base + "." + s
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}
