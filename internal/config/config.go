package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Models   ModelsConfig
	Face     FaceConfig
	Logging  LoggingConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// RedisConfig points at the lock service. An empty Host disables distributed
// locking in favour of an in-process lock.
type RedisConfig struct {
	Host     string // defaults to 127.0.0.1
	Port     int    // defaults to 6379
	Password string
	DB       int
}

// Addr returns the host:port address of the Redis server
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ModelsConfig struct {
	Dir            string // root model directory, face models live in Dir/face
	ONNXRuntimeLib string // path to the onnxruntime shared library
	Catalog        ModelCatalog
}

// FaceDir returns the directory holding face model weights and index files
func (c *ModelsConfig) FaceDir() string {
	return filepath.Join(c.Dir, "face")
}

// ModelCatalog describes the pretrained networks, loaded from the embedded models.yaml
type ModelCatalog struct {
	Detector DetectorModel `yaml:"detector"`
	Embedder EmbedderModel `yaml:"embedder"`
}

type DetectorModel struct {
	File         string   `yaml:"file"`
	Version      int      `yaml:"version"`
	InputName    string   `yaml:"input_name"`
	InputWidth   int      `yaml:"input_width"`
	InputHeight  int      `yaml:"input_height"`
	Mean         float32  `yaml:"mean"`
	Std          float32  `yaml:"std"`
	OutputNames  []string `yaml:"output_names"`
	NMSThreshold float32  `yaml:"nms_threshold"`
}

type EmbedderModel struct {
	File        string  `yaml:"file"`
	InputName   string  `yaml:"input_name"`
	OutputName  string  `yaml:"output_name"`
	InputWidth  int     `yaml:"input_width"`
	InputHeight int     `yaml:"input_height"`
	Layout      string  `yaml:"layout"` // NCHW or NHWC
	Mean        float32 `yaml:"mean"`
	Std         float32 `yaml:"std"`
	Dim         int     `yaml:"dim"`
}

type FaceConfig struct {
	MinScore float64 // minimum detector confidence for a face to be kept (default 0.99)
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error (default info)
	Format string // text or json (default text)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable, falling back to defaultVal when unset.
func envString(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

// ParseModelCatalog decodes a model catalogue from YAML.
func ParseModelCatalog(data []byte) (ModelCatalog, error) {
	var catalog ModelCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return catalog, fmt.Errorf("parse model catalog: %w", err)
	}
	if catalog.Detector.File == "" || catalog.Embedder.File == "" {
		return catalog, fmt.Errorf("model catalog must name detector and embedder files")
	}
	if len(catalog.Detector.OutputNames) != 9 {
		return catalog, fmt.Errorf("detector needs 9 output names, got %d", len(catalog.Detector.OutputNames))
	}
	if catalog.Embedder.Dim <= 0 {
		return catalog, fmt.Errorf("embedder dim must be positive")
	}
	return catalog, nil
}

func Load() *Config {
	catalog, err := ParseModelCatalog(modelsYAML)
	if err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to load embedded models.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     envString("REDIS_HOST", "127.0.0.1"),
			Port:     envInt("REDIS_PORT", 6379),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		Models: ModelsConfig{
			Dir:            envString("MODEL_DIR", "models"),
			ONNXRuntimeLib: envString("ONNXRUNTIME_LIB", "/usr/lib/libonnxruntime.so"),
			Catalog:        catalog,
		},
		Face: FaceConfig{
			MinScore: envFloat("FACE_MIN_SCORE", 0.99),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
	}
}
