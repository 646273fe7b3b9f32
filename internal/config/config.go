package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageMinIO  = "minio"
	StorageS3     = "s3"
	StorageMemory = "memory"
)

type AudioConfig struct {
	Codec      string `yaml:"codec"`
	BitRate    int    `yaml:"bit_rate"`
	Channels   int    `yaml:"channels"`
	SampleRate int    `yaml:"sampling_rate"`
	Format     string `yaml:"encoding_format"`
	Threads    int    `yaml:"encoding_threads"`
}

type StorageConfig struct {
	Backend           string `yaml:"backend"`
	Bucket            string `yaml:"bucket"`
	Region            string `yaml:"region"`
	Endpoint          string `yaml:"endpoint"`
	AccessKey         string `yaml:"access_key"`
	SecretKey         string `yaml:"secret_key"`
	ObjectURLTemplate string `yaml:"object_url_template"`
}

type Config struct {
	CSVDir         string `yaml:"csv_dir"`
	SourceDir      string `yaml:"source_dir"`
	OutputDir      string `yaml:"output_dir"`
	PairtreePrefix string `yaml:"pairtree_prefix"`

	Audio AudioConfig `yaml:"audio"`

	FFmpegPath        string `yaml:"ffmpeg_path"`
	AudiowaveformPath string `yaml:"audiowaveform_path"`

	AccessURLTemplate string `yaml:"iiif_access_url"`
	AccessURLIndex    int    `yaml:"iiif_access_url_id_index"`

	ConversionWorkers int  `yaml:"conversion_workers"`
	WaveformWorkers   int  `yaml:"waveform_workers"`
	PairtreeWorkers   int  `yaml:"pairtree_workers"`
	PartialSuccess    bool `yaml:"partial_success"`

	Storage StorageConfig `yaml:"storage"`

	RedisURL string `yaml:"redis_url"`

	HTTPHost string `yaml:"http_host"`
	HTTPPort int    `yaml:"http_port"`

	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	OTelEnabled    bool    `yaml:"otel_enabled"`
	OTelEndpoint   string  `yaml:"otel_endpoint"`
	OTelSampleRate float64 `yaml:"otel_sample_rate"`
}

func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			Codec:      "aac",
			BitRate:    128000,
			Channels:   2,
			SampleRate: 44100,
			Format:     "mp4",
		},
		FFmpegPath:        "ffmpeg",
		AudiowaveformPath: "audiowaveform",
		AccessURLTemplate: "{}",
		AccessURLIndex:    1,
		ConversionWorkers: 2,
		WaveformWorkers:   2,
		PairtreeWorkers:   2,
		Storage: StorageConfig{
			Backend: StorageS3,
			Region:  "us-east-1",
		},
		HTTPHost:       "0.0.0.0",
		HTTPPort:       8888,
		Environment:    "development",
		LogLevel:       "info",
		OTelEndpoint:   "localhost:4317",
		OTelSampleRate: 1.0,
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperror.Wrap(err, apperror.KindConfiguration, "config", "failed to load .env")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.deriveObjectURLTemplate()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperror.Wrap(err, apperror.KindConfiguration, "config", "failed to read config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperror.Wrap(err, apperror.KindConfiguration, "config", "failed to parse config file")
	}
	return nil
}

func (c *Config) applyEnv() {
	c.CSVDir = getEnvString("CSV_DIR", c.CSVDir)
	c.SourceDir = getEnvString("SOURCE_DIR", c.SourceDir)
	c.OutputDir = getEnvString("OUTPUT_DIR", c.OutputDir)
	c.PairtreePrefix = getEnvString("PAIRTREE_PREFIX", c.PairtreePrefix)

	c.Audio.Codec = getEnvString("AUDIO_CODEC", c.Audio.Codec)
	c.Audio.BitRate = getEnvInt("AUDIO_BIT_RATE", c.Audio.BitRate)
	c.Audio.Channels = getEnvInt("AUDIO_CHANNELS", c.Audio.Channels)
	c.Audio.SampleRate = getEnvInt("AUDIO_SAMPLING_RATE", c.Audio.SampleRate)
	c.Audio.Format = getEnvString("AUDIO_ENCODING_FORMAT", c.Audio.Format)
	c.Audio.Threads = getEnvInt("AUDIO_ENCODING_THREADS", c.Audio.Threads)

	c.FFmpegPath = getEnvString("FFMPEG_PATH", c.FFmpegPath)
	c.AudiowaveformPath = getEnvString("AUDIOWAVEFORM_PATH", c.AudiowaveformPath)

	c.AccessURLTemplate = getEnvString("IIIF_ACCESS_URL", c.AccessURLTemplate)
	c.AccessURLIndex = getEnvInt("IIIF_ACCESS_URL_ID_INDEX", c.AccessURLIndex)

	c.ConversionWorkers = getEnvInt("CONVERSION_WORKERS", c.ConversionWorkers)
	c.WaveformWorkers = getEnvInt("WAVEFORM_WORKERS", c.WaveformWorkers)
	c.PairtreeWorkers = getEnvInt("PAIRTREE_WORKERS", c.PairtreeWorkers)
	c.PartialSuccess = getEnvBool("PARTIAL_SUCCESS", c.PartialSuccess)

	c.Storage.Backend = getEnvString("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Bucket = getEnvString("AUDIOWAVEFORM_S3_BUCKET", c.Storage.Bucket)
	c.Storage.Region = getEnvString("AWS_DEFAULT_REGION", c.Storage.Region)
	c.Storage.Endpoint = getEnvString("AWS_ENDPOINT_URL", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnvString("AWS_ACCESS_KEY_ID", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnvString("AWS_SECRET_ACCESS_KEY", c.Storage.SecretKey)
	c.Storage.ObjectURLTemplate = getEnvString("AUDIOWAVEFORM_S3_OBJECT_URL_TEMPLATE", c.Storage.ObjectURLTemplate)

	c.RedisURL = getEnvString("REDIS_URL", c.RedisURL)

	c.HTTPHost = getEnvString("HTTP_HOST", c.HTTPHost)
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)

	c.Environment = getEnvString("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)

	c.OTelEnabled = getEnvBool("OTEL_ENABLED", c.OTelEnabled)
	c.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTelEndpoint)
	c.OTelSampleRate = getEnvFloat("OTEL_SAMPLE_RATE", c.OTelSampleRate)
}

// An S3-compatible endpoint (LocalStack, MinIO) serves objects path-style, so
// the object URL can be derived when none is configured.
func (c *Config) deriveObjectURLTemplate() {
	if c.Storage.ObjectURLTemplate != "" {
		return
	}
	switch {
	case c.Storage.Backend == StorageMemory:
		c.Storage.ObjectURLTemplate = "memory://" + c.Storage.Bucket + "/{}"
	case c.Storage.Endpoint != "":
		c.Storage.ObjectURLTemplate = strings.TrimSuffix(c.Storage.Endpoint, "/") + "/" + c.Storage.Bucket + "/{}"
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"CSV_DIR", c.CSVDir},
		{"SOURCE_DIR", c.SourceDir},
		{"OUTPUT_DIR", c.OutputDir},
		{"PAIRTREE_PREFIX", c.PairtreePrefix},
		{"AUDIOWAVEFORM_S3_BUCKET", c.Storage.Bucket},
	}
	for _, r := range required {
		if r.value == "" {
			return apperror.Configuration("%s is required", r.key)
		}
	}

	switch c.Storage.Backend {
	case StorageS3, StorageMinIO, StorageMemory:
	default:
		return apperror.Configuration("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.Storage.Backend == StorageMinIO && c.Storage.Endpoint == "" {
		return apperror.Configuration("AWS_ENDPOINT_URL is required for the minio backend")
	}

	if c.Storage.ObjectURLTemplate == "" {
		return apperror.Configuration("AUDIOWAVEFORM_S3_OBJECT_URL_TEMPLATE is required when no endpoint is configured")
	}

	if c.Audio.Format == "" {
		return apperror.Configuration("AUDIO_ENCODING_FORMAT must not be empty")
	}

	if c.AccessURLIndex < 1 {
		return apperror.Configuration("invalid access url index: %d", c.AccessURLIndex)
	}

	pools := map[string]int{
		"CONVERSION_WORKERS": c.ConversionWorkers,
		"WAVEFORM_WORKERS":   c.WaveformWorkers,
		"PAIRTREE_WORKERS":   c.PairtreeWorkers,
	}
	for key, size := range pools {
		if size < 1 {
			return apperror.Configuration("invalid %s: %d", key, size)
		}
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return apperror.Configuration("invalid port: %d", c.HTTPPort)
	}

	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}
