package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/codec/fake"
	"github.com/xaionaro-go/amcdecoder/codec/libav"
	"github.com/xaionaro-go/amcdecoder/decoder"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/logger"
	"github.com/xaionaro-go/amcdecoder/sink"
	"github.com/xaionaro-go/observability"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [options] <URL>\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a YAML file with the decoder config")
	backend := pflag.String("backend", "libav", "codec backend: libav|fake")
	decoderName := pflag.String("decoder-name", "", "libav decoder name (e.g. h264_mediacodec)")
	lowLatency := pflag.Bool("low-latency", false, "request the low-latency mode of the codec")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()
	if len(pflag.Args()) != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	logger.SetDefault(func() logger.Logger {
		return l
	})
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}
	libav.RedirectLogs(l)

	cfg := decoder.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = decoder.LoadConfigYAML(*configPath)
		if err != nil {
			l.Fatal(err)
		}
	}

	var factory codec.Factory
	switch *backend {
	case "libav":
		factory = libav.NewFactory(libav.OptionDecoderName(*decoderName))
	case "fake":
		factory = fake.NewFactory(fake.Config{InputSlotSize: 1 << 20, OutputSlotSize: 1 << 20})
	default:
		l.Fatalf("unknown backend '%s'", *backend)
	}

	input, err := openDemuxer(ctx, pflag.Arg(0))
	if err != nil {
		l.Fatal(err)
	}
	defer input.Close()

	format, err := input.Format()
	if err != nil {
		l.Fatal(err)
	}
	if *lowLatency {
		format = format.WithParam(codec.KeyLowLatency, 1)
	}

	renderer := sink.NewRenderer()
	dec := decoder.New(factory, renderer, decoder.OptionConfig(cfg))
	if err := dec.Open(ctx); err != nil {
		l.Fatal(err)
	}
	defer dec.Close(ctx)
	if err := dec.SetFormat(ctx, format); err != nil {
		l.Fatal(err)
	}

	t := time.NewTicker(time.Second)
	defer t.Stop()
	startedAt := time.Now()
	for number := uint64(0); ; number++ {
		select {
		case <-t.C:
			printStats(dec, renderer)
		default:
		}

		in, err := input.Next(number)
		if isEOF(err) {
			break
		}
		if err != nil {
			l.Fatal(err)
		}
		if r := dec.Submit(ctx, in); r != flow.OK {
			l.Errorf("unable to submit %s: %s", in, r)
			break
		}
	}
	if r := dec.Finish(ctx); r != flow.OK {
		l.Errorf("unable to finish: %s", r)
	}
	printStats(dec, renderer)

	stats := dec.Stats()
	fmt.Printf("decoded %d frames (%s) in %s\n",
		renderer.Stats().Rendered,
		humanize.Bytes(stats.BuffersDelivered.Bytes),
		time.Since(startedAt).Round(time.Millisecond),
	)
}

func printStats(dec *decoder.Decoder, renderer *sink.Renderer) {
	b, err := json.Marshal(dec.Stats())
	if err != nil {
		panic(err)
	}
	rs := renderer.Stats()
	fmt.Printf("decoder:%s -> rendered:%d failed:%d\n", b, rs.Rendered, rs.RenderFailed)
}
