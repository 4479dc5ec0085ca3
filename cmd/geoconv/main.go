// Command geoconv converts between photo or map pixels and geodetic
// coordinates and prints photo footprints and tile splits as GeoJSON.
//
// Usage:
//
//	geoconv pixel     -photo DJI_0001.JPG -col 2000 -row 1500
//	geoconv latlon    -photo DJI_0001.JPG -lat 44.95 -lon -83.05
//	geoconv footprint DJI_0001.JPG DJI_0002.JPG ...
//	geoconv click     -ortho map.tif -x 0.25 -y 0.5
//	geoconv split     -kml tile.kml -width 8192 -height 8192 -size 2048 -id <tile id>
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"argos/internal/config"
	"argos/internal/exif"
	"argos/internal/gdalio"
	"argos/internal/geo"
	"argos/internal/log"
	"argos/internal/region"
	"argos/internal/version"
	"argos/pkg/geometry"
)

const usage = "Usage: geoconv <pixel|latlon|footprint|click|split> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "-version" || cmd == "version" {
		fmt.Println(version.String("geoconv"))
		return
	}

	cfgPath := os.Getenv("ARGOS_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var out any
	switch cmd {
	case "pixel":
		out, err = pixelCmd(cfg, args)
	case "latlon":
		out, err = latlonCmd(cfg, args)
	case "footprint":
		out, err = footprintCmd(cfg, args)
	case "click":
		out, err = clickCmd(args)
	case "split":
		out, err = splitCmd(args)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	if err != nil {
		log.Error(cmd+" failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal("write output", zap.Error(err))
	}
}

func camera(cfg *config.Config, path string) (*geo.Camera, error) {
	meta, err := exif.ReadFile(path, cfg.ExifOptions())
	if err != nil {
		return nil, err
	}
	decl, err := cfg.Declination()
	if err != nil {
		return nil, err
	}
	return geo.NewCamera(meta, decl)
}

func pixelCmd(cfg *config.Config, args []string) (any, error) {
	fs := flag.NewFlagSet("pixel", flag.ExitOnError)
	path := fs.String("photo", "", "Photo path")
	col := fs.Float64("col", 0, "Pixel column")
	row := fs.Float64("row", 0, "Pixel row")
	fs.Parse(args)

	cam, err := camera(cfg, *path)
	if err != nil {
		return nil, err
	}
	return cam.PixelToGeodetic(geometry.RawPixel{Col: *col, Row: *row})
}

func latlonCmd(cfg *config.Config, args []string) (any, error) {
	fs := flag.NewFlagSet("latlon", flag.ExitOnError)
	path := fs.String("photo", "", "Photo path")
	lat := fs.Float64("lat", 0, "Latitude")
	lon := fs.Float64("lon", 0, "Longitude")
	fs.Parse(args)

	cam, err := camera(cfg, *path)
	if err != nil {
		return nil, err
	}
	pt := geo.Point{Lat: *lat, Lon: *lon}
	px, err := cam.GeodeticToPixel(pt)
	if err != nil {
		return nil, err
	}
	u, err := cam.GeodeticToUnit(pt)
	if err != nil {
		return nil, err
	}
	return struct {
		Pixel    geometry.PixelPoint `json:"pixel"`
		Unit     geo.Unit            `json:"unit"`
		InFrame  bool                `json:"in_frame"`
		Distance float64             `json:"distance_m"`
	}{px.Tagged(), u, cam.Contains(pt), geo.Distance(cam.Exif().Center, pt)}, nil
}

func footprintCmd(cfg *config.Config, args []string) (any, error) {
	fc := geojson.NewFeatureCollection()
	for _, path := range args {
		cam, err := camera(cfg, path)
		if err != nil {
			log.Warn("skipping photo", zap.String("path", path), zap.Error(err))
			continue
		}
		poly, err := cam.Footprint()
		if err != nil {
			return nil, err
		}
		f := geojson.NewFeature(poly)
		f.Properties["path"] = path
		f.Properties["meters_per_pixel"] = cam.MetersPerPixel()
		f.Properties["yaw"] = cam.Exif().Yaw
		fc.Append(f)
	}
	return fc, nil
}

func clickCmd(args []string) (any, error) {
	fs := flag.NewFlagSet("click", flag.ExitOnError)
	path := fs.String("ortho", "", "Orthomap path")
	x := fs.Float64("x", 0, "Column as a fraction of the displayed width")
	y := fs.Float64("y", 0, "Row as a fraction of the displayed height")
	fs.Parse(args)

	m, err := gdalio.OpenOrthomap(*path)
	if err != nil {
		return nil, err
	}
	return m.GeoTransform().DisplayToGeodetic(*x, *y)
}

func splitCmd(args []string) (any, error) {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	kml := fs.String("kml", "", "Tile KML with a LatLonBox")
	width := fs.Int("width", 0, "Tile width in pixels")
	height := fs.Int("height", 0, "Tile height in pixels")
	size := fs.Int("size", 2048, "Sub-tile side in pixels")
	id := fs.String("id", "", "Tile ID (<map id>-TILE_tttt_nnnn); sub-tiles are numbered under its source")
	fs.Parse(args)

	b, err := region.ReadKMLFile(*kml)
	if err != nil {
		return nil, err
	}
	var key *region.TileKey
	if *id != "" {
		k, err := region.ParseTileID(*id)
		if err != nil {
			return nil, err
		}
		key = &k
	}

	fc := geojson.NewFeatureCollection()
	for _, st := range region.SplitBounds(b, *width, *height, *size) {
		bound := orb.Bound{
			Min: orb.Point{st.Bounds.West, st.Bounds.South},
			Max: orb.Point{st.Bounds.East, st.Bounds.North},
		}
		f := geojson.NewFeature(bound.ToPolygon())
		f.Properties["index"] = st.Index
		f.Properties["row"] = st.Row
		f.Properties["col"] = st.Col
		if key != nil {
			k := *key
			k.Index = st.Index
			f.Properties["tile_id"] = k.ID()
		}
		fc.Append(f)
	}
	return fc, nil
}
