// Package config loads the transcriber configuration from config/config.yaml,
// a .env file and TRANSCRIBER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/logger"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "TRANSCRIBER"

// Config represents the application configuration
type Config struct {
	Recognition  Recognition   `mapstructure:"recognition" yaml:"recognition"`
	Diarization  Diarization   `mapstructure:"diarization" yaml:"diarization"`
	Segmentation Segmentation  `mapstructure:"segmentation" yaml:"segmentation"`
	Speaker      Speaker       `mapstructure:"speaker" yaml:"speaker"`
	Merge        Merge         `mapstructure:"merge" yaml:"merge"`
	Output       Output        `mapstructure:"output" yaml:"output"`
	Pipeline     Pipeline      `mapstructure:"pipeline" yaml:"pipeline"`
	Workers      Workers       `mapstructure:"workers" yaml:"workers"`
	Storage      Storage       `mapstructure:"storage" yaml:"storage"`
	Cleanup      Cleanup       `mapstructure:"cleanup" yaml:"cleanup"`
	GoogleDrive  GoogleDrive   `mapstructure:"google_drive" yaml:"google_drive"`
	Log          logger.Config `mapstructure:"log" yaml:"log"`
}

// Recognition selects and configures the speech recognition engine.
type Recognition struct {
	Engine      string        `mapstructure:"engine" yaml:"engine"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Language    string        `mapstructure:"language" yaml:"language"`
	Device      string        `mapstructure:"device" yaml:"device"`
	PythonBin   string        `mapstructure:"python_bin" yaml:"python_bin"`
	URL         string        `mapstructure:"url" yaml:"url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// Diarization configures the optional speaker diarization engine.
type Diarization struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Engine      string        `mapstructure:"engine" yaml:"engine"`
	URL         string        `mapstructure:"url" yaml:"url"`
	Token       string        `mapstructure:"token" yaml:"token"`
	TokenEnv    []string      `mapstructure:"token_env" yaml:"token_env"`
	DotEnvFile  string        `mapstructure:"dotenv_file" yaml:"dotenv_file"`
	TokenFile   string        `mapstructure:"token_file" yaml:"token_file"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	NumSpeakers int           `mapstructure:"num_speakers" yaml:"num_speakers"`
	MinSpeakers int           `mapstructure:"min_speakers" yaml:"min_speakers"`
	MaxSpeakers int           `mapstructure:"max_speakers" yaml:"max_speakers"`
}

// Segmentation controls when and how a source is split into chunks.
type Segmentation struct {
	MaxFileSizeMB float64 `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb"`
	ChunkMinutes  float64 `mapstructure:"chunk_minutes" yaml:"chunk_minutes"`
	KeepChunks    bool    `mapstructure:"keep_chunks" yaml:"keep_chunks"`
	Normalize     bool    `mapstructure:"normalize" yaml:"normalize"`
	FFmpegPath    string  `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath   string  `mapstructure:"ffprobe_path" yaml:"ffprobe_path"`
}

// Speaker tunes the pause heuristic used without diarization.
type Speaker struct {
	PauseThreshold float64 `mapstructure:"pause_threshold" yaml:"pause_threshold"`
	SentenceGap    float64 `mapstructure:"sentence_gap" yaml:"sentence_gap"`
	Heuristic      string  `mapstructure:"heuristic" yaml:"heuristic"`
}

// Merge selects how chunk offsets are computed.
type Merge struct {
	OffsetMode string `mapstructure:"offset_mode" yaml:"offset_mode"`
}

// Output controls transcript encoding and location.
type Output struct {
	Format    string `mapstructure:"format" yaml:"format"`
	Dir       string `mapstructure:"dir" yaml:"dir"`
	WriteMeta bool   `mapstructure:"write_meta" yaml:"write_meta"`
}

// Pipeline holds job-level failure policy.
type Pipeline struct {
	SkipFailedChunks bool `mapstructure:"skip_failed_chunks" yaml:"skip_failed_chunks"`
}

// Workers sizes the job and chunk worker pools.
type Workers struct {
	Jobs   int `mapstructure:"jobs" yaml:"jobs"`
	Chunks int `mapstructure:"chunks" yaml:"chunks"`
}

// Storage locates working files and the metadata database.
type Storage struct {
	WorkDir  string `mapstructure:"work_dir" yaml:"work_dir"`
	Database string `mapstructure:"database" yaml:"database"`
}

// Cleanup configures the stale work file sweeper.
type Cleanup struct {
	IntervalMinutes int `mapstructure:"interval_minutes" yaml:"interval_minutes"`
	MaxAgeHours     int `mapstructure:"max_age_hours" yaml:"max_age_hours"`
}

// GoogleDrive configures the optional transcript export.
type GoogleDrive struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	FolderName      string `mapstructure:"folder_name" yaml:"folder_name"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Recognition: Recognition{
			Engine:      "whisper-cli",
			Model:       "base",
			Device:      "auto",
			PythonBin:   "python",
			URL:         "http://localhost:8387",
			Timeout:     10 * time.Minute,
			MaxAttempts: 3,
		},
		Diarization: Diarization{
			Enabled:    true,
			Engine:     "pyannote",
			URL:        "http://localhost:8388",
			TokenEnv:   []string{"HF_TOKEN", "HUGGINGFACE_HUB_TOKEN"},
			DotEnvFile: ".env",
			TokenFile:  "~/.huggingface/token",
			Timeout:    5 * time.Minute,
		},
		Segmentation: Segmentation{
			MaxFileSizeMB: 25,
			ChunkMinutes:  10,
			Normalize:     true,
			FFmpegPath:    "ffmpeg",
			FFprobePath:   "ffprobe",
		},
		Speaker: Speaker{
			PauseThreshold: 1.5,
			SentenceGap:    0.8,
			Heuristic:      "paragraph",
		},
		Merge:  Merge{OffsetMode: "measured"},
		Output: Output{Format: "txt", WriteMeta: true},
		Workers: Workers{
			Jobs:   1,
			Chunks: 1,
		},
		Storage: Storage{
			WorkDir:  "temp",
			Database: "transcripts.db",
		},
		Cleanup: Cleanup{
			IntervalMinutes: 60,
			MaxAgeHours:     24,
		},
		GoogleDrive: GoogleDrive{
			CredentialsFile: "config/credentials.json",
			FolderName:      "Transcripts",
		},
		Log: logger.Config{Level: "info", Format: logger.FormatConsole, Output: "stderr"},
	}
}

// NewViper returns a viper instance carrying defaults and env bindings.
// Callers may bind command-line flags to it before calling LoadWith.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from path, or from config/config.yaml when path is empty.
func Load(path string) (*Config, error) {
	return LoadWith(NewViper(), path)
}

// LoadWith reads configuration into a prepared viper instance.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	// .env is optional; variables already set win.
	_ = godotenv.Load()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Diarization.TokenFile = expandHome(cfg.Diarization.TokenFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Recognition.Engine {
	case "whisper-cli", "whisper-http", "openai":
	default:
		return fmt.Errorf("config: unknown recognition engine %q", c.Recognition.Engine)
	}
	if c.Segmentation.ChunkMinutes <= 0 {
		return fmt.Errorf("config: segmentation.chunk_minutes must be positive")
	}
	if c.Segmentation.MaxFileSizeMB <= 0 {
		return fmt.Errorf("config: segmentation.max_file_size_mb must be positive")
	}
	switch c.Merge.OffsetMode {
	case "nominal", "measured":
	default:
		return fmt.Errorf("config: unknown merge.offset_mode %q", c.Merge.OffsetMode)
	}
	switch c.Speaker.Heuristic {
	case "paragraph", "alternate":
	default:
		return fmt.Errorf("config: unknown speaker.heuristic %q", c.Speaker.Heuristic)
	}
	switch c.Output.Format {
	case "txt", "srt", "vtt", "json":
	default:
		return fmt.Errorf("config: unknown output.format %q", c.Output.Format)
	}
	if c.Workers.Jobs < 1 || c.Workers.Chunks < 1 {
		return fmt.Errorf("config: worker counts must be at least 1")
	}
	return nil
}

// MaxSizeBytes converts the configured size threshold to bytes.
func (c *Config) MaxSizeBytes() int64 {
	return int64(c.Segmentation.MaxFileSizeMB * 1024 * 1024)
}

// Dump renders the configuration as YAML.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

// setDefaults registers every key of Defaults() so that env overrides
// and Unmarshal see the full key set.
func setDefaults(v *viper.Viper) {
	raw, err := yaml.Marshal(Defaults())
	if err != nil {
		panic(fmt.Sprintf("config: encode defaults: %v", err))
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	walkDefaults(v, "", tree)
}

func walkDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			walkDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}
