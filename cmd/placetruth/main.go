// Command placetruth places field ground truth on a map, tile or photo and
// prints the placements as JSON.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"argos/internal/config"
	"argos/internal/exif"
	"argos/internal/gdalio"
	"argos/internal/geo"
	"argos/internal/georef"
	"argos/internal/log"
	"argos/internal/region"
	"argos/internal/survey"
	"argos/internal/truth"
	"argos/internal/version"
)

type options struct {
	truthFiles string
	kml        string
	bounds     string
	ortho      string
	display    string
	manifest   string
	imageID    string
	photo      string
}

func main() {
	var o options
	flag.StringVar(&o.truthFiles, "truth", "", "Comma-separated ground-truth shapefiles")
	flag.StringVar(&o.kml, "kml", "", "Place on the LatLonBox of a KML file")
	flag.StringVar(&o.bounds, "bounds", "", "Place on bounds given as north,south,east,west")
	flag.StringVar(&o.ortho, "ortho", "", "Place on a georeferenced orthomap")
	flag.StringVar(&o.display, "display", "", "Rendered map image; points on its white padding are skipped")
	flag.StringVar(&o.manifest, "m", "", "Survey manifest holding the photo's homography (with -image)")
	flag.StringVar(&o.imageID, "image", "", "Place on a registered photo of the manifest")
	flag.StringVar(&o.photo, "photo", "", "Place on a photo from its EXIF alone")
	cfgPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("placetruth"))
		return
	}
	if o.truthFiles == "" {
		fmt.Println("Usage: placetruth -truth <a.shp,b.shp> (-kml <f> | -bounds n,s,e,w | -ortho <map.tif> [-display <png>] | -m <manifest> -image <id> | -photo <jpg>)")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	res, err := run(cfg, o)
	if err != nil {
		log.Error("placement failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatal("write result", zap.Error(err))
	}
}

func run(cfg *config.Config, o options) (truth.Result, error) {
	points, err := loadTruth(strings.Split(o.truthFiles, ","))
	if err != nil {
		return truth.Result{}, err
	}
	tc, err := truth.NewContext(points, cfg.TargetList())
	if err != nil {
		return truth.Result{}, err
	}
	log.Info("ground truth indexed", zap.Int("points", tc.Len()), zap.Int("targets", len(tc.Taxonomy().Targets())))

	frame, isImage, err := buildFrame(cfg, o)
	if err != nil {
		return truth.Result{}, err
	}
	opts := cfg.PlacementOptions(isImage)
	if o.display != "" {
		img, err := decodeImage(o.display)
		if err != nil {
			return truth.Result{}, err
		}
		opts.Mask = truth.WhiteMask{Image: img}
	}

	res, err := tc.Place(frame, opts)
	if err != nil {
		return truth.Result{}, err
	}
	log.Info("ground truth placed", zap.Int("nearby", len(res.Nearby)), zap.Int("unique", len(res.Unique)))
	return res, nil
}

func loadTruth(paths []string) ([]truth.Point, error) {
	var out []truth.Point
	for _, path := range paths {
		feats, err := gdalio.ReadPoints(strings.TrimSpace(path))
		if err != nil {
			return nil, err
		}
		for i, f := range feats {
			p, err := truth.FromFields(f.Position, f.Fields)
			if err != nil {
				log.Warn("skipping waypoint", zap.String("file", path), zap.Int("feature", i), zap.Error(err))
				continue
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func buildFrame(cfg *config.Config, o options) (truth.Frame, bool, error) {
	switch {
	case o.kml != "":
		b, err := region.ReadKMLFile(o.kml)
		if err != nil {
			return nil, false, err
		}
		r, err := region.NewUnitRegion(b)
		return truth.RegionFrame{Region: r}, false, err

	case o.bounds != "":
		b, err := parseBounds(o.bounds)
		if err != nil {
			return nil, false, err
		}
		r, err := region.NewUnitRegion(b)
		return truth.RegionFrame{Region: r}, false, err

	case o.ortho != "":
		m, err := gdalio.OpenOrthomap(o.ortho)
		if err != nil {
			return nil, false, err
		}
		f, err := truth.NewMapFrame(m.GeoTransform())
		return f, false, err

	case o.imageID != "":
		return imageFrame(cfg, o.manifest, o.imageID)

	case o.photo != "":
		meta, err := exif.ReadFile(o.photo, cfg.ExifOptions())
		if err != nil {
			return nil, true, err
		}
		decl, err := cfg.Declination()
		if err != nil {
			return nil, true, err
		}
		cam, err := geo.NewCamera(meta, decl)
		if err != nil {
			return nil, true, err
		}
		return truth.CameraFrame{Camera: cam}, true, nil
	}
	return nil, false, errors.New("no frame: pass -kml, -bounds, -ortho, -image or -photo")
}

func imageFrame(cfg *config.Config, manifestPath, id string) (truth.Frame, bool, error) {
	if manifestPath == "" {
		return nil, true, errors.New("-image needs -m")
	}
	man, err := survey.Load(manifestPath)
	if err != nil {
		return nil, true, err
	}
	img, ok := man.Image(id)
	if !ok {
		return nil, true, fmt.Errorf("%w: %s", survey.ErrUnknownImage, id)
	}
	if !img.Registered() {
		return nil, true, fmt.Errorf("%s is not registered: %s", id, img.Error)
	}
	meta, err := exif.ReadFile(man.GetImagePath(manifestPath, &img), cfg.ExifOptions())
	if err != nil {
		return nil, true, err
	}
	ortho, err := gdalio.OpenOrthomap(man.GetMapPath(manifestPath))
	if err != nil {
		return nil, true, err
	}
	ref, err := georef.New(*img.Homography, image.Pt(meta.Width, meta.Height), ortho.GeoTransform())
	if err != nil {
		return nil, true, err
	}
	return georef.NewImageFrame(ref, meta.Center), true, nil
}

func parseBounds(s string) (region.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return region.Bounds{}, fmt.Errorf("bounds %q: want north,south,east,west", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return region.Bounds{}, fmt.Errorf("bounds %q: %w", s, err)
		}
		v[i] = f
	}
	return region.Bounds{North: v[0], South: v[1], East: v[2], West: v[3]}, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
