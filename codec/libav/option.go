package libav

const (
	DefaultInputSlots    = 8
	DefaultInputSlotSize = 1 << 20
	DefaultOutputSlots   = 8
)

type Config struct {
	// DecoderName selects the libav decoder by name (e.g. "h264_mediacodec");
	// the default decoder of the codec is used if it is empty or unknown.
	DecoderName string

	InputSlots    int
	InputSlotSize int
	OutputSlots   int

	// PrivateOptions are passed to the libav decoder on open.
	PrivateOptions map[string]string
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
	cfg := Config{
		InputSlots:    DefaultInputSlots,
		InputSlotSize: DefaultInputSlotSize,
		OutputSlots:   DefaultOutputSlots,
	}
	opts.apply(&cfg)
	return cfg
}

type OptionDecoderName string

func (o OptionDecoderName) apply(cfg *Config) {
	cfg.DecoderName = string(o)
}

type OptionInputSlots int

func (o OptionInputSlots) apply(cfg *Config) {
	cfg.InputSlots = int(o)
}

type OptionInputSlotSize int

func (o OptionInputSlotSize) apply(cfg *Config) {
	cfg.InputSlotSize = int(o)
}

type OptionOutputSlots int

func (o OptionOutputSlots) apply(cfg *Config) {
	cfg.OutputSlots = int(o)
}

type OptionPrivateOption struct {
	Key   string
	Value string
}

func (o OptionPrivateOption) apply(cfg *Config) {
	if cfg.PrivateOptions == nil {
		cfg.PrivateOptions = map[string]string{}
	}
	cfg.PrivateOptions[o.Key] = o.Value
}
