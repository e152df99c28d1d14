// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command msgq-pump runs producers and consumers through a queue sized by
// a YAML configuration file and reports throughput.
//
// Usage:
//
//	msgq-pump -config msgq.yaml [-debug]
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.hybscloud.com/msgq/internal/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultConfigPath = "msgq.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log := newLogger(os.Stderr, *debug)
	log.Info().Str("config", *configPath).Bool("debug", *debug).Msg("starting msgq-pump")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := newPump(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to create pump")
		os.Exit(1)
	}
	log.Info().
		Int("capacity", cfg.Queue.Capacity).
		Str("pool", cfg.Pool.Mode).
		Int("blocks", cfg.Pool.Blocks).
		Int("block_size", cfg.Pool.BlockSize).
		Int("producers", cfg.Pump.Producers).
		Int("consumers", cfg.Pump.Consumers).
		Msg("queue ready")

	res, err := p.run(ctx)
	logResult(log, res)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Msg("interrupted")
	case err != nil:
		log.Error().Err(err).Msg("pump failed")
		os.Exit(1)
	}
}

// newLogger returns a JSON logger, or a human-readable one at debug level,
// tagged with a fresh run id.
func newLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
}

func logResult(log zerolog.Logger, res result) {
	rate := 0.0
	if secs := res.Elapsed.Seconds(); secs > 0 {
		rate = float64(res.Received) / secs
	}
	log.Info().
		Int64("sent", res.Sent).
		Int64("received", res.Received).
		Int64("backpressure", res.Backpressure).
		Int64("timeouts", res.Timeouts).
		Int64("out_of_order", res.OutOfOrder).
		Dur("elapsed", res.Elapsed).
		Float64("msgs_per_sec", rate).
		Msg("pump finished")
}
