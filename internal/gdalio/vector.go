package gdalio

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"argos/internal/geo"
	"argos/internal/raster"
)

// PointFeature is a point geometry with its attribute values as strings.
type PointFeature struct {
	Position geo.Point
	Fields   map[string]string
}

// ReadPoints reads every feature of the first layer of a vector dataset
// (typically a shapefile), reprojected to EPSG:4326. Non-point geometries are
// reduced to the centre of their bounds.
func ReadPoints(path string) ([]PointFeature, error) {
	register()
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	layers := ds.Layers()
	if len(layers) == 0 {
		return nil, fmt.Errorf("%s: no layers", path)
	}
	layer := layers[0]

	var crs raster.Reprojector = raster.Geographic{}
	if sr := layer.SpatialRef(); sr != nil {
		wkt, err := sr.WKT()
		sr.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: crs: %w", path, err)
		}
		if crs, err = ReprojectorForWKT(wkt); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	var out []PointFeature
	for {
		feat := layer.NextFeature()
		if feat == nil {
			break
		}
		pf, err := readFeature(feat, crs)
		feat.Close()
		if err != nil {
			return nil, fmt.Errorf("%s feature %d: %w", path, len(out), err)
		}
		out = append(out, pf)
	}
	return out, nil
}

func readFeature(feat *godal.Feature, crs raster.Reprojector) (PointFeature, error) {
	g := feat.Geometry()
	if g == nil {
		return PointFeature{}, fmt.Errorf("no geometry")
	}
	defer g.Close()
	b, err := g.Bounds()
	if err != nil {
		return PointFeature{}, err
	}
	pos, err := crs.ToGeodetic((b[0]+b[2])/2, (b[1]+b[3])/2)
	if err != nil {
		return PointFeature{}, err
	}

	fields := make(map[string]string)
	for name, f := range feat.Fields() {
		fields[name] = f.String()
	}
	return PointFeature{Position: pos, Fields: fields}, nil
}
