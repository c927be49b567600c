// Package config loads the sessionscribe configuration: defaults,
// then a YAML file, then SESSIONSCRIBE_* environment overrides. The
// result is an explicit struct constructed once at startup and passed
// by reference; nothing reloads configuration behind the caller's back.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked for when no --config flag is given.
const DefaultFile = "sessionscribe.yaml"

// AudioConfig sets the canonical transcription format.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

// VADConfig configures the speech detector.
type VADConfig struct {
	Binary        string  `yaml:"binary"`
	Threshold     float64 `yaml:"threshold"`
	MinSpeechSec  float64 `yaml:"min_speech_sec"`
	MinSilenceSec float64 `yaml:"min_silence_sec"`
	PaddingSec    float64 `yaml:"padding_sec"`
}

// WhisperConfig configures the transcription engine.
type WhisperConfig struct {
	Binary      string  `yaml:"binary"`
	Model       string  `yaml:"model"`
	Language    string  `yaml:"language"`
	Temperature float64 `yaml:"temperature"`
	Prompt      string  `yaml:"prompt"`
}

// CombineConfig configures the transcript merge.
type CombineConfig struct {
	Dedupe            string   `yaml:"dedupe"`
	SkipFilters       []string `yaml:"skip_filters"`
	Chunks            int      `yaml:"chunks"`
	IncludeTimestamps bool     `yaml:"include_timestamps"`
}

// SpeakerMapping links a source identifier to speaker metadata.
type SpeakerMapping struct {
	Dir         string `yaml:"dir"`
	Player      string `yaml:"player"`
	Role        string `yaml:"role"`
	Character   string `yaml:"character"`
	Description string `yaml:"description"`
}

// PathsConfig holds the input/output roots for path mapping.
type PathsConfig struct {
	InputRoot  string `yaml:"input_root"`
	OutputRoot string `yaml:"output_root"`
}

// LogConfig configures the run log.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Config is the complete configuration surface.
type Config struct {
	Workers        int              `yaml:"workers"`
	ComputeThreads int              `yaml:"compute_threads"`
	Audio          AudioConfig      `yaml:"audio"`
	VAD            VADConfig        `yaml:"vad"`
	Whisper        WhisperConfig    `yaml:"whisper"`
	Combine        CombineConfig    `yaml:"combine"`
	Speakers       []SpeakerMapping `yaml:"speakers"`
	Paths          PathsConfig      `yaml:"paths"`
	Log            LogConfig        `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workers: 2,
		Audio:   AudioConfig{SampleRate: 16000, Channels: 1},
		VAD: VADConfig{
			Binary:        "silero-vad",
			Threshold:     0.5,
			MinSpeechSec:  0.5,
			MinSilenceSec: 1.0,
			PaddingSec:    0.3,
		},
		Whisper: WhisperConfig{
			Binary:   "whisper-cli",
			Model:    "models/ggml-large-v3-turbo.bin",
			Language: "en",
		},
		Combine: CombineConfig{
			Dedupe:      "consecutive",
			SkipFilters: []string{"[AUDIO OUT]", "[BLANK_AUDIO]"},
			Chunks:      1,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// and environment overrides. An empty path falls back to DefaultFile,
// which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine; defaults plus env apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setInt("SESSIONSCRIBE_WORKERS", &c.Workers)
	setInt("SESSIONSCRIBE_COMPUTE_THREADS", &c.ComputeThreads)
	setInt("SESSIONSCRIBE_CHUNKS", &c.Combine.Chunks)
	setString("SESSIONSCRIBE_DEDUPE", &c.Combine.Dedupe)
	setString("SESSIONSCRIBE_VAD_BINARY", &c.VAD.Binary)
	setString("SESSIONSCRIBE_WHISPER_BINARY", &c.Whisper.Binary)
	setString("SESSIONSCRIBE_WHISPER_MODEL", &c.Whisper.Model)
	setString("SESSIONSCRIBE_LOG_LEVEL", &c.Log.Level)
	setString("SESSIONSCRIBE_LOG_FILE", &c.Log.File)
	if v, ok := os.LookupEnv("SESSIONSCRIBE_SKIP_FILTERS"); ok {
		var filters []string
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				filters = append(filters, f)
			}
		}
		c.Combine.SkipFilters = filters
	}
	if v, ok := os.LookupEnv("SESSIONSCRIBE_INCLUDE_TIMESTAMPS"); ok {
		c.Combine.IncludeTimestamps = v == "true" || v == "1" || v == "yes"
	}
}

// Validate checks the whole configuration and reports every problem at
// once instead of stopping at the first.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Workers < 1 {
		add("workers must be at least 1, got %d", c.Workers)
	}
	if c.ComputeThreads < 0 {
		add("compute_threads must not be negative, got %d", c.ComputeThreads)
	}
	if c.Audio.SampleRate <= 0 {
		add("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		add("audio.channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.VAD.Threshold < 0 || c.VAD.Threshold > 1 {
		add("vad.threshold must be in [0, 1], got %g", c.VAD.Threshold)
	}
	if c.VAD.PaddingSec < 0 {
		add("vad.padding_sec must not be negative, got %g", c.VAD.PaddingSec)
	}
	if c.Whisper.Model == "" {
		add("whisper.model must be set")
	}
	switch c.Combine.Dedupe {
	case "off", "consecutive", "unique":
	default:
		add("combine.dedupe must be off, consecutive or unique, got %q", c.Combine.Dedupe)
	}
	if c.Combine.Chunks < 1 {
		add("combine.chunks must be at least 1, got %d", c.Combine.Chunks)
	}
	for i, sp := range c.Speakers {
		if sp.Dir == "" {
			add("speakers[%d].dir must be set", i)
		}
		if sp.Player == "" {
			add("speakers[%d].player must be set", i)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// EffectiveThreads resolves the compute-thread cap: an explicit value
// wins, otherwise a quarter of the CPUs, at least one.
func (c *Config) EffectiveThreads() int {
	if c.ComputeThreads > 0 {
		return c.ComputeThreads
	}
	n := runtime.NumCPU() / 4
	if n < 1 {
		n = 1
	}
	return n
}

// BinaryPaths builds the tool resolution table for the command runner.
// Empty values resolve from PATH under the alias name.
func (c *Config) BinaryPaths() map[string]string {
	return map[string]string{
		"ffmpeg":  "",
		"ffprobe": "",
		"vad":     c.VAD.Binary,
		"whisper": c.Whisper.Binary,
	}
}
