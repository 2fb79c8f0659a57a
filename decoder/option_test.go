package decoder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/indicator"
)

func TestParseConfigYAML(t *testing.T) {
	cfg, err := ParseConfigYAML([]byte(`
mime_type: video/hevc
input_poll_timeout: 20ms
drain_input_timeout: 1s
max_frame_lag: 10
deliver_late_frames: true
latency_average: mama
`))
	require.NoError(t, err)
	require.Equal(t, codec.MIMETypeVideoHEVC, cfg.MIMEType)
	require.Equal(t, 20*time.Millisecond, cfg.InputPollTimeout)
	require.Equal(t, DefaultOutputPollTimeout, cfg.OutputPollTimeout)
	require.Equal(t, time.Second, cfg.DrainInputTimeout)
	require.Equal(t, uint64(10), cfg.MaxFrameLag)
	require.Equal(t, DefaultConfig().MaxFrameAge, cfg.MaxFrameAge)
	require.True(t, cfg.DeliverLateFrames)
	require.Equal(t, indicator.KindMAMA, cfg.LatencyAverage)
	require.NotNil(t, cfg.Now)

	_, err = ParseConfigYAML([]byte("input_poll_timeout: [1, 2]"))
	require.Error(t, err)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decoder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_poll_timeout: 5ms\n"), 0o644))

	cfg, err := LoadConfigYAML(path)
	require.NoError(t, err)
	require.Equal(t, 5*time.Millisecond, cfg.OutputPollTimeout)

	_, err = LoadConfigYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestOptions(t *testing.T) {
	surface := struct{ name string }{"window"}
	cfg := Options{
		OptionConfig(Config{MIMEType: codec.MIMETypeVideoVP9}),
		OptionSurface(surface),
		OptionMaxFrameAge(time.Second),
		OptionMaxFrameLag(7),
		OptionLatencyAverage(indicator.KindMAMA),
	}.Config()

	require.Equal(t, codec.MIMETypeVideoVP9, cfg.MIMEType)
	require.Equal(t, surface, cfg.Surface)
	require.Equal(t, time.Second, cfg.MaxFrameAge)
	require.Equal(t, uint64(7), cfg.MaxFrameLag)
	require.Equal(t, indicator.KindMAMA, cfg.LatencyAverage)
	// zero values of the replaced config fall back to the defaults
	require.Equal(t, DefaultInputPollTimeout, cfg.InputPollTimeout)
	require.Equal(t, DefaultLatencyWindow, cfg.LatencyWindow)
	require.NotNil(t, cfg.Now)
}
