package vision

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kozaktomas/phototag/internal/config"
	"github.com/kozaktomas/phototag/internal/constants"
	"github.com/kozaktomas/phototag/internal/lock"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitRuntime loads the ONNX Runtime shared library once per process.
func InitRuntime(libPath string) error {
	ortOnce.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("initialize onnx runtime: %w", err)
		}
	})
	return ortErr
}

// Loader constructs models; swapped out in tests.
type Loader func(cfg *config.ModelsConfig) (*Models, func(), error)

// LoadONNX loads the RetinaFace detector and FaceNet embedder from cfg.FaceDir().
func LoadONNX(cfg *config.ModelsConfig) (*Models, func(), error) {
	if err := InitRuntime(cfg.ONNXRuntimeLib); err != nil {
		return nil, nil, err
	}

	catalog := cfg.Catalog
	detPath := filepath.Join(cfg.FaceDir(), catalog.Detector.File)
	embPath := filepath.Join(cfg.FaceDir(), catalog.Embedder.File)

	slog.Info("loading detection model", "path", detPath)
	det, err := NewRetinaFace(detPath, catalog.Detector)
	if err != nil {
		return nil, nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewFaceNet(embPath, catalog.Embedder)
	if err != nil {
		det.Close()
		return nil, nil, fmt.Errorf("load embedder: %w", err)
	}

	closeFn := func() {
		det.Close()
		emb.Close()
	}
	return &Models{Detector: det, Embedder: emb, Version: catalog.Detector.Version}, closeFn, nil
}

// ModelCache loads models on first use and keeps them for the life of the
// process. Loading runs under the shared model-load lock so concurrent
// workers on one host do not all read the weights at once.
type ModelCache struct {
	mu      sync.Mutex
	cfg     *config.ModelsConfig
	locker  lock.Locker
	load    Loader
	models  *Models
	closeFn func()
}

// NewModelCache creates a cache that loads ONNX models.
func NewModelCache(cfg *config.ModelsConfig, locker lock.Locker) *ModelCache {
	return &ModelCache{cfg: cfg, locker: locker, load: LoadONNX}
}

// NewModelCacheWithLoader creates a cache with a custom loader.
func NewModelCacheWithLoader(cfg *config.ModelsConfig, locker lock.Locker, load Loader) *ModelCache {
	return &ModelCache{cfg: cfg, locker: locker, load: load}
}

// Get returns the loaded models, loading them on the first call.
func (c *ModelCache) Get(ctx context.Context) (*Models, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.models != nil {
		return c.models, nil
	}

	err := lock.With(ctx, c.locker, constants.LockModelLoad, func() error {
		start := time.Now()
		models, closeFn, err := c.load(c.cfg)
		if err != nil {
			return err
		}
		c.models = models
		c.closeFn = closeFn
		slog.Info("face models loaded", "version", models.Version, "duration", time.Since(start))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load face models: %w", err)
	}
	return c.models, nil
}

// Close releases loaded models.
func (c *ModelCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeFn != nil {
		c.closeFn()
	}
	c.models = nil
	c.closeFn = nil
}

var (
	sharedMu     sync.Mutex
	sharedCaches = make(map[string]*ModelCache)
)

// SharedModelCache returns the process-wide cache for cfg's face model
// directory, creating it on first use.
func SharedModelCache(cfg *config.ModelsConfig, locker lock.Locker) *ModelCache {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	key := cfg.FaceDir()
	if c, ok := sharedCaches[key]; ok {
		return c
	}
	c := NewModelCache(cfg, locker)
	sharedCaches[key] = c
	return c
}
