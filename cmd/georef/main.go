// Command georef registers the photos of a survey flight onto its orthomap
// and caches the homographies in the survey manifest.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"argos/internal/config"
	"argos/internal/gdalio"
	"argos/internal/geo"
	"argos/internal/georef"
	"argos/internal/homography"
	"argos/internal/homography/sift"
	"argos/internal/log"
	"argos/internal/photo"
	"argos/internal/region"
	"argos/internal/survey"
	"argos/internal/version"
	"argos/pkg/geometry"
)

func main() {
	manifestPath := flag.String("m", "", "Path to survey manifest (created if missing)")
	cfgPath := flag.String("config", "", "Path to config file")
	mapID := flag.String("map", "", "Map ID (YYYY-MM-DD-site-alt) for a new manifest")
	mapPath := flag.String("ortho", "", "Orthomap path for a new manifest (default: <depot>/<map path>)")
	photoDir := flag.String("photos", "", "Directory of photos to add (default: <depot>/<flight>/images)")
	workers := flag.Int("j", 0, "Parallel registrations (default from config)")
	force := flag.Bool("force", false, "Re-register photos that already have a homography")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("georef"))
		return
	}
	if *manifestPath == "" {
		fmt.Println("Usage: georef -m <manifest> [-map <map id>] [-ortho <map.tif>] [-photos <dir>] [-j N] [-force]")
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
	if *workers > 0 {
		cfg.Estimator.Workers = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *manifestPath, *mapID, *mapPath, *photoDir, *force); err != nil {
		log.Error("georef failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, manifestPath, mapID, mapPath, photoDir string, force bool) error {
	man, err := openManifest(cfg, manifestPath, mapID, mapPath, photoDir)
	if err != nil {
		return err
	}

	ortho, err := gdalio.OpenOrthomap(man.GetMapPath(manifestPath))
	if err != nil {
		return err
	}
	log.Info("orthomap opened",
		zap.String("path", ortho.Path()),
		zap.Int("width", ortho.Bounds().Dx()),
		zap.Int("height", ortho.Bounds().Dy()))

	if err := recordBoundaries(man, ortho); err != nil {
		log.Warn("no map boundaries", zap.Error(err))
	}

	todo := man.Pending()
	if force {
		todo = man.AllImages()
	}
	log.Info("registering photos", zap.Int("count", len(todo)), zap.Int("workers", cfg.Estimator.Workers))

	est := homography.NewEstimator(sift.New(), cfg.EstimatorOptions())
	builder := georef.NewBuilder(est, cfg.Cache.MaxEntries, cfg.Cache.TTL)
	builder.Timeout = cfg.Estimator.Timeout
	defer builder.Close()

	start := time.Now()
	var failed int
	results := make(chan error, len(todo))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Estimator.Workers)
	for _, img := range todo {
		g.Go(func() error {
			err := register(gctx, cfg, man, manifestPath, builder, ortho, img)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results <- err
			return nil
		})
	}
	waitErr := g.Wait()
	close(results)
	for err := range results {
		if err != nil {
			failed++
		}
	}

	if err := man.Save(manifestPath); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	log.Info("registration finished",
		zap.Int("registered", len(todo)-failed),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))
	return waitErr
}

func register(ctx context.Context, cfg *config.Config, man *survey.File, manifestPath string,
	builder *georef.Builder, ortho *gdalio.Orthomap, img survey.Image) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Estimator.Timeout)
	defer cancel()

	lg := log.With(zap.String("image_id", img.ID))
	p, err := photo.Load(man.GetImagePath(manifestPath, &img), cfg.ExifOptions())
	if err != nil {
		lg.Warn("load photo", zap.Error(err))
		recordFailure(lg, man, img.ID, err)
		return err
	}

	builder.Forget(img.ID)
	ref, err := builder.Get(ctx, georef.Request{Key: img.ID, Photo: p, Ortho: ortho})
	if err != nil {
		if errors.Is(err, homography.ErrNoMatchFound) {
			lg.Warn("no match, flag for manual registration", zap.Error(err))
		} else {
			lg.Error("registration failed", zap.Error(err))
		}
		recordFailure(lg, man, img.ID, err)
		return err
	}

	h := ref.Homography()
	if err := man.SetHomography(img.ID, h); err != nil {
		lg.Error("record homography", zap.Error(err))
		return err
	}
	fields := []zap.Field{zap.Int("matches", h.Matches), zap.Int("inliers", h.Inliers)}
	b := p.Bounds()
	if c, err := ref.PixelToGeodetic(geometry.RawPixel{Col: float64(b.Dx()) / 2, Row: float64(b.Dy()) / 2}); err == nil {
		fields = append(fields,
			zap.Float64("lat", c.Lat),
			zap.Float64("lon", c.Lon),
			zap.Float64("gps_offset_m", geo.Distance(p.Exif().Center, c)))
	}
	lg.Info("photo registered", fields...)
	return nil
}

// recordFailure stores a registration error on the photo's manifest entry.
func recordFailure(lg *zap.Logger, man *survey.File, id string, cause error) {
	if err := man.SetError(id, cause); err != nil {
		lg.Error("record failure in manifest", zap.NamedError("cause", cause), zap.Error(err))
	}
}

func openManifest(cfg *config.Config, manifestPath, mapID, mapPath, photoDir string) (*survey.File, error) {
	man, err := survey.Load(manifestPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if mapID == "" {
			return nil, fmt.Errorf("%s does not exist; pass -map to create it", manifestPath)
		}
		man = survey.New(mapID)
	default:
		return nil, err
	}

	key, keyErr := region.ParseMapID(man.MapID)
	if man.MapPath == "" {
		if mapPath == "" {
			if keyErr != nil {
				return nil, keyErr
			}
			mapPath = filepath.Join(cfg.Depot, filepath.FromSlash(key.MapPath()))
		}
		man.SetMap(manifestPath, mapPath)
	}

	if photoDir == "" && len(man.Images) == 0 && keyErr == nil {
		photoDir = filepath.Join(cfg.Depot, filepath.FromSlash(key.Root()), "images")
	}
	if photoDir != "" {
		paths, err := photo.Glob(photoDir)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if _, err := man.AddImage(manifestPath, p); err != nil {
				log.Warn("skipping photo", zap.String("path", p), zap.Error(err))
			}
		}
	}
	return man, nil
}

// recordBoundaries fills the raw map boundaries from a KML sidecar or, failing
// that, from the orthomap's own corners.
func recordBoundaries(man *survey.File, ortho *gdalio.Orthomap) error {
	if _, err := man.Map().Region(region.BoundaryRaw); err == nil {
		return nil
	}
	b, err := region.ReadKMLFile(strings.TrimSuffix(ortho.Path(), filepath.Ext(ortho.Path())) + ".kml")
	if err != nil {
		gt := ortho.GeoTransform()
		w, h := gt.Size()
		nw, err1 := gt.PixelToGeodetic(geometry.MapPixel{})
		se, err2 := gt.PixelToGeodetic(geometry.MapPixel{Col: float64(w), Row: float64(h)})
		if err := errors.Join(err1, err2); err != nil {
			return err
		}
		b = region.Bounds{North: nw.Lat, South: se.Lat, East: se.Lon, West: nw.Lon}
		if err := b.Validate(); err != nil {
			return err
		}
	}
	man.SetBoundaries(region.BoundaryRaw, b)
	return nil
}
