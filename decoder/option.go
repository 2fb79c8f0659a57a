// option.go defines the configuration of a Decoder.

package decoder

import (
	"fmt"
	"os"
	"time"

	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/correlator"
	"github.com/xaionaro-go/amcdecoder/indicator"
	"gopkg.in/yaml.v3"
)

const (
	DefaultInputPollTimeout  = 100 * time.Millisecond
	DefaultOutputPollTimeout = 100 * time.Millisecond
	DefaultDrainInputTimeout = 500 * time.Millisecond
	DefaultLatencyWindow     = 30
)

type Config struct {
	// MIMEType is the codec to open on Open; if empty, the session is
	// opened by the first SetFormat using the MIME type of the format.
	MIMEType string `yaml:"mime_type"`

	// Surface makes the codec render to the surface instead of exposing
	// output buffer data.
	Surface codec.Surface `yaml:"-"`

	InputPollTimeout  time.Duration `yaml:"input_poll_timeout"`
	OutputPollTimeout time.Duration `yaml:"output_poll_timeout"`
	DrainInputTimeout time.Duration `yaml:"drain_input_timeout"`

	MaxFrameAge time.Duration `yaml:"max_frame_age"`
	MaxFrameLag uint64        `yaml:"max_frame_lag"`

	// DeliverLateFrames disables dropping outputs of frames that missed
	// their deadline.
	DeliverLateFrames bool `yaml:"deliver_late_frames"`

	LatencyAverage indicator.Kind `yaml:"latency_average"`
	LatencyWindow  int            `yaml:"latency_window"`

	// Now is the clock the deadlines are compared against.
	Now func() time.Time `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		InputPollTimeout:  DefaultInputPollTimeout,
		OutputPollTimeout: DefaultOutputPollTimeout,
		DrainInputTimeout: DefaultDrainInputTimeout,
		MaxFrameAge:       correlator.DefaultMaxAge,
		MaxFrameLag:       correlator.DefaultMaxLag,
		LatencyAverage:    indicator.KindEMA,
		LatencyWindow:     DefaultLatencyWindow,
		Now:               time.Now,
	}
}

// withDefaults replaces unset (zero) values with the defaults.
func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.InputPollTimeout <= 0 {
		cfg.InputPollTimeout = def.InputPollTimeout
	}
	if cfg.OutputPollTimeout <= 0 {
		cfg.OutputPollTimeout = def.OutputPollTimeout
	}
	if cfg.DrainInputTimeout <= 0 {
		cfg.DrainInputTimeout = def.DrainInputTimeout
	}
	if cfg.MaxFrameAge <= 0 {
		cfg.MaxFrameAge = def.MaxFrameAge
	}
	if cfg.MaxFrameLag == 0 {
		cfg.MaxFrameLag = def.MaxFrameLag
	}
	if cfg.LatencyAverage == "" {
		cfg.LatencyAverage = def.LatencyAverage
	}
	if cfg.LatencyWindow <= 0 {
		cfg.LatencyWindow = def.LatencyWindow
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return cfg
}

// LoadConfigYAML reads a Config from a YAML file; durations are written
// as Go duration strings ("100ms").
func LoadConfigYAML(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	return ParseConfigYAML(b)
}

func ParseConfigYAML(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("unable to parse the config: %w", err)
	}
	return cfg.withDefaults(), nil
}

type Option interface {
	apply(*Config)
}

type Options []Option

func (opts Options) apply(cfg *Config) {
	for _, opt := range opts {
		opt.apply(cfg)
	}
}

func (opts Options) Config() Config {
	cfg := DefaultConfig()
	opts.apply(&cfg)
	return cfg.withDefaults()
}

// OptionConfig replaces the whole config; options after it still apply.
type OptionConfig Config

func (o OptionConfig) apply(cfg *Config) {
	*cfg = Config(o)
}

type OptionMIMEType string

func (o OptionMIMEType) apply(cfg *Config) {
	cfg.MIMEType = string(o)
}

type OptionSurfaceValue struct {
	Surface codec.Surface
}

func (o OptionSurfaceValue) apply(cfg *Config) {
	cfg.Surface = o.Surface
}

func OptionSurface(surface codec.Surface) OptionSurfaceValue {
	return OptionSurfaceValue{Surface: surface}
}

type OptionInputPollTimeout time.Duration

func (o OptionInputPollTimeout) apply(cfg *Config) {
	cfg.InputPollTimeout = time.Duration(o)
}

type OptionOutputPollTimeout time.Duration

func (o OptionOutputPollTimeout) apply(cfg *Config) {
	cfg.OutputPollTimeout = time.Duration(o)
}

type OptionDrainInputTimeout time.Duration

func (o OptionDrainInputTimeout) apply(cfg *Config) {
	cfg.DrainInputTimeout = time.Duration(o)
}

type OptionMaxFrameAge time.Duration

func (o OptionMaxFrameAge) apply(cfg *Config) {
	cfg.MaxFrameAge = time.Duration(o)
}

type OptionMaxFrameLag uint64

func (o OptionMaxFrameLag) apply(cfg *Config) {
	cfg.MaxFrameLag = uint64(o)
}

type OptionDeliverLateFrames bool

func (o OptionDeliverLateFrames) apply(cfg *Config) {
	cfg.DeliverLateFrames = bool(o)
}

type OptionLatencyAverage indicator.Kind

func (o OptionLatencyAverage) apply(cfg *Config) {
	cfg.LatencyAverage = indicator.Kind(o)
}

type OptionClock func() time.Time

func (o OptionClock) apply(cfg *Config) {
	cfg.Now = o
}
