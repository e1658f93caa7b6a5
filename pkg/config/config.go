package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

// Config defines the global application configuration structure.
// This structure maps directly to the config.json file and holds
// business-level settings like adapter credentials, the worker backend,
// and per-session routing policy.
type Config struct {
	// Adapters contains a map of surface identifiers (e.g., "telegram", "web")
	// to their specific configuration payloads in raw JSON format.
	Adapters map[string]jsoniter.RawMessage `json:"adapters"`
	// Worker holds the configuration for the worker backend in raw JSON.
	Worker jsoniter.RawMessage `json:"worker"`
	// SystemPrompt is the global persona/instruction string prepended to
	// every worker request as the system message.
	SystemPrompt string `json:"system_prompt"`
	// Sessions configures routing policy: global defaults, per-adapter
	// defaults, and per-session overrides.
	Sessions SessionsConfig `json:"sessions"`
}

// PolicyConfig is the JSON form of a session routing policy. Empty fields
// inherit from the next level up (override -> adapter -> defaults).
type PolicyConfig struct {
	// Concurrency: "none", "global" or "session".
	Concurrency string `json:"concurrency,omitempty"`
	// Queue: "interrupt" or "queue".
	Queue string `json:"queue,omitempty"`
	// Memory: "session" or "transcript".
	Memory string `json:"memory,omitempty"`
	// Response: "streaming", "bundled" or "final".
	Response string `json:"response,omitempty"`
}

// Merge returns a copy of p with empty fields filled from base.
func (p PolicyConfig) Merge(base PolicyConfig) PolicyConfig {
	if p.Concurrency == "" {
		p.Concurrency = base.Concurrency
	}
	if p.Queue == "" {
		p.Queue = base.Queue
	}
	if p.Memory == "" {
		p.Memory = base.Memory
	}
	if p.Response == "" {
		p.Response = base.Response
	}
	return p
}

// SessionsConfig holds the three policy layers. Resolution for a session key
// "adapter:thread" is overrides[key], then adapters[adapter], then defaults.
type SessionsConfig struct {
	Defaults  PolicyConfig            `json:"defaults"`
	Adapters  map[string]PolicyConfig `json:"adapters,omitempty"`
	Overrides map[string]PolicyConfig `json:"overrides,omitempty"`
}

// Validate ensures the configuration structure contains all mandatory fields.
// It acts as a primary guard before the system proceeds to initialization.
func (c *Config) Validate() error {
	if len(c.Worker) == 0 {
		return fmt.Errorf("mandatory 'worker' configuration is missing or empty")
	}
	if len(c.Adapters) == 0 {
		return fmt.Errorf("mandatory 'adapters' configuration is missing or empty")
	}
	return nil
}

// SystemConfig defines engine-level technical parameters.
// These settings are usually stored in system.json and control the
// performance, reliability, and technical behavior of the routing core.
type SystemConfig struct {
	// MaxConcurrentJobs caps how many worker jobs may run at once across all
	// sessions whose policy opts into the global limit. 0 disables the cap.
	MaxConcurrentJobs int `json:"max_concurrent_jobs"`
	// StreamMinChars is the minimum accumulated text before the stream
	// buffer flushes an outbound message mid-turn.
	StreamMinChars int `json:"stream_min_chars"`
	// StreamMaxIntervalMs is the longest the stream buffer holds pending
	// text (in milliseconds) before flushing regardless of size.
	StreamMaxIntervalMs int `json:"stream_max_interval_ms"`
	// MessageLimit is the maximum character count for a single outbound
	// message. Longer text is segmented at natural boundaries.
	MessageLimit int `json:"message_limit"`
	// EchoWindowMs is how long (in milliseconds) a relayed text is treated
	// as a potential echo of the bot's own output.
	EchoWindowMs int `json:"echo_window_ms"`
	// EchoCapacity bounds the number of echo fingerprints retained per adapter.
	EchoCapacity int `json:"echo_capacity"`
	// TypingRefreshMs is the interval (in milliseconds) at which the typing
	// indicator is re-sent while a job is running, for surfaces whose
	// indicator expires on its own.
	TypingRefreshMs int `json:"typing_refresh_ms"`
	// WorkerTimeoutMs is the hard cutoff time (in milliseconds) for a single
	// worker job. The job context is cancelled if exceeded. 0 disables it.
	WorkerTimeoutMs int `json:"worker_timeout_ms"`
	// DrainTimeoutMs is how long (in milliseconds) a cancelled worker is
	// given to emit its final result before it is abandoned.
	DrainTimeoutMs int `json:"drain_timeout_ms"`
	// InternalEventBuffer defines the size of the internal Go channels used
	// for buffering worker events to prevent production blocking.
	InternalEventBuffer int `json:"internal_event_buffer"`
	// DownloadTimeoutMs is the timeout (in milliseconds) applied when
	// fetching external media or files (e.g., from Telegram servers).
	DownloadTimeoutMs int `json:"download_timeout_ms"`
	// OllamaDefaultURL is the fallback endpoint used when connecting
	// to a local Ollama instance if no specific URL is provided.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// TranscriptDir is the directory where session transcripts are persisted.
	TranscriptDir string `json:"transcript_dir"`
	// AttachmentsDir is the directory where downloaded attachments are stored.
	AttachmentsDir string `json:"attachments_dir"`
	// MaxTranscriptTurns bounds how many recent turns are replayed to the
	// worker for transcript-memory sessions. 0 means unbounded.
	MaxTranscriptTurns int `json:"max_transcript_turns"`
	// LogLevel sets the minimum severity for log output.
	// Accepted values: "debug", "info", "warn", "error". Default: "info".
	LogLevel string `json:"log_level"`
}

// DefaultSystemConfig returns a SystemConfig pointer initialized with hardcoded
// safe default values. This is used as a fallback when the system.json file
// is missing or corrupt, ensuring the engine can always start.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxConcurrentJobs:   4,
		StreamMinChars:      200,
		StreamMaxIntervalMs: 1500,
		MessageLimit:        4000,
		EchoWindowMs:        60000,
		EchoCapacity:        256,
		TypingRefreshMs:     4000,
		WorkerTimeoutMs:     600000,
		DrainTimeoutMs:      5000,
		InternalEventBuffer: 100,
		DownloadTimeoutMs:   10000,
		OllamaDefaultURL:    "http://localhost:11434",
		TranscriptDir:       "transcripts",
		AttachmentsDir:      "attachments",
		MaxTranscriptTurns:  40,
		LogLevel:            "info",
	}
}

// Load reads and parses the JSON configuration files from the current working directory.
// It first attempts to load 'config.json' (app config). If this file is missing, it returns an error.
// Then it calls LoadSystemConfig to load 'system.json'.
// Returns pointers to the loaded Config and SystemConfig, or an error if the mandatory app config fails.
func Load() (*Config, *SystemConfig, error) {
	// 1. Load Application Config
	appPath := "config.json"
	if _, err := os.Stat(appPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config file '%s' not found. please create one", appPath)
	}

	appFile, err := os.ReadFile(appPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// 1a. Validate structure integrity
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	// 2. Load System Config independently
	sysCfg := LoadSystemConfig("system.json")

	return &cfg, sysCfg, nil
}

// LoadSystemConfig attempts to load system settings, returns defaults if it fails
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg // File not found, use defaults
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg); err != nil {
		return cfg // Parse failed, use defaults
	}

	return cfg
}
