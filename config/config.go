// Package config loads runtime settings from POLMEM_* environment variables.
package config

import (
	"fmt"
	"time"

	"polmem/process"

	"github.com/caarlos0/env/v11"
)

// Chat source strategies
const (
	ChatBuffer  = "buffer"
	ChatCapture = "capture"
)

// Chat buffer encodings
const (
	EncodingASCII    = "ascii"
	EncodingShiftJIS = "shift-jis"
)

// Config holds every tunable of the monitor.
type Config struct {
	Executable  string                    `env:"POLMEM_EXECUTABLE" envDefault:"pol.exe"`
	GameModule  string                    `env:"POLMEM_GAME_MODULE" envDefault:"FFXiMain.dll"`
	PointerSize process.ProcessMemorySize `env:"POLMEM_POINTER_SIZE" envDefault:"4"`

	Tick         time.Duration `env:"POLMEM_TICK" envDefault:"10ms"`
	ScanInterval time.Duration `env:"POLMEM_SCAN_INTERVAL" envDefault:"2s"`
	TPInterval   time.Duration `env:"POLMEM_TP_INTERVAL" envDefault:"100ms"`
	ChatInterval time.Duration `env:"POLMEM_CHAT_INTERVAL" envDefault:"100ms"`

	Offsets Offsets `envPrefix:"POLMEM_OFFSET_"`
	Chat    Chat    `envPrefix:"POLMEM_CHAT_"`
	Attach  Attach  `envPrefix:"POLMEM_ATTACH_"`
	Sink    Sink    `envPrefix:"POLMEM_SINK_"`

	ArchivePath  string `env:"POLMEM_ARCHIVE_PATH"`
	OTelEndpoint string `env:"POLMEM_OTEL_ENDPOINT"`
}

// Offsets are pointer chains relative to the game module.
type Offsets struct {
	TP       process.Chain `env:"TP" envDefault:"0x12BC,0xD38"`
	Name     process.Chain `env:"NAME" envDefault:"0xEA53C,0x314"`
	PlayerID process.Chain `env:"PLAYER_ID" envDefault:"0x106BC,0x0"`
	ChatLog  process.Chain `env:"CHAT_LOG" envDefault:"0x128AD4,0x10"`

	NameSize process.ProcessMemorySize `env:"NAME_SIZE" envDefault:"16"`
	ChatSize process.ProcessMemorySize `env:"CHAT_SIZE" envDefault:"4096"`
}

type Chat struct {
	Strategy      string        `env:"STRATEGY" envDefault:"buffer"`
	Encoding      string        `env:"ENCODING" envDefault:"ascii"`
	QuietPeriod   time.Duration `env:"QUIET_PERIOD" envDefault:"500ms"`
	WaiterPoll    time.Duration `env:"WAITER_POLL" envDefault:"100ms"`
	QueueCapacity int           `env:"QUEUE_CAPACITY" envDefault:"100"`
	HistorySize   int           `env:"HISTORY_SIZE" envDefault:"100"`
	CaptureDLL    string        `env:"CAPTURE_DLL" envDefault:"EliteAPI.dll"`
	MaxLinesPoll  int           `env:"MAX_LINES_PER_POLL" envDefault:"10"`
}

// Attach controls identity resolution on freshly launched clients.
type Attach struct {
	Stabilization    time.Duration `env:"STABILIZATION" envDefault:"1s"`
	IdentityAttempts int           `env:"IDENTITY_ATTEMPTS" envDefault:"5"`
	BackoffInitial   time.Duration `env:"BACKOFF_INITIAL" envDefault:"2s"`
	BackoffMax       time.Duration `env:"BACKOFF_MAX" envDefault:"10s"`
}

type Sink struct {
	BaseURL    string        `env:"BASE_URL" envDefault:"http://127.0.0.1:8080"`
	TPPath     string        `env:"TP_PATH" envDefault:"/tp"`
	ChatPath   string        `env:"CHAT_PATH" envDefault:"/chat"`
	AuthHeader string        `env:"AUTH_HEADER"`
	AuthValue  string        `env:"AUTH_VALUE"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"5s"`
	QueueSize  int           `env:"QUEUE_SIZE" envDefault:"64"`
	Workers    int           `env:"WORKERS" envDefault:"2"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.PointerSize != 4 && c.PointerSize != 8 {
		return fmt.Errorf("pointer size must be 4 or 8, got %d", c.PointerSize)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive")
	}
	if c.ScanInterval < c.Tick {
		return fmt.Errorf("scan interval %s is shorter than tick %s", c.ScanInterval, c.Tick)
	}
	switch c.Chat.Strategy {
	case ChatBuffer, ChatCapture:
	default:
		return fmt.Errorf("unknown chat strategy %q", c.Chat.Strategy)
	}
	switch c.Chat.Encoding {
	case EncodingASCII, EncodingShiftJIS:
	default:
		return fmt.Errorf("unknown chat encoding %q", c.Chat.Encoding)
	}
	if c.Chat.QueueCapacity <= 0 {
		return fmt.Errorf("chat queue capacity must be positive")
	}
	if c.Sink.Workers <= 0 || c.Sink.QueueSize <= 0 {
		return fmt.Errorf("sink workers and queue size must be positive")
	}
	return nil
}
