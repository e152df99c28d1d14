// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/msgq"
	"code.hybscloud.com/msgq/internal/config"
	"github.com/rs/zerolog"
)

// headerLen is the producer id and sequence number prefixed to each message.
const headerLen = 8

// result summarizes one pump run.
type result struct {
	Sent         int64
	Received     int64
	Backpressure int64
	Timeouts     int64
	OutOfOrder   int64
	Elapsed      time.Duration
}

// pump moves cfg.Pump.Messages messages from each producer to the
// consumers through one queue built from cfg.
type pump struct {
	cfg *config.Config
	log zerolog.Logger
	q   *msgq.Queue

	sent, received, backpressure, timeouts, outOfOrder atomix.Int64
}

func newPump(cfg *config.Config, log zerolog.Logger) (*pump, error) {
	q, err := cfg.Builder().Build()
	if err != nil {
		return nil, fmt.Errorf("build queue: %w", err)
	}
	return &pump{cfg: cfg, log: log, q: q}, nil
}

// run blocks until every message is received, ctx is canceled or a
// producer or consumer fails.
func (p *pump) run(parent context.Context) (result, error) {
	defer p.close()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	total := int64(p.cfg.Pump.Producers * p.cfg.Pump.Messages)
	start := time.Now()
	errCh := make(chan error, p.cfg.Pump.Producers+p.cfg.Pump.Consumers)

	var wg sync.WaitGroup
	for id := range p.cfg.Pump.Producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.produce(ctx, uint32(id)); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}
	for id := range p.cfg.Pump.Consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.consume(ctx, id, total); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errCh)

	res := result{
		Sent:         p.sent.Load(),
		Received:     p.received.Load(),
		Backpressure: p.backpressure.Load(),
		Timeouts:     p.timeouts.Load(),
		OutOfOrder:   p.outOfOrder.Load(),
		Elapsed:      time.Since(start),
	}
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return res, err
	}
	return res, parent.Err()
}

func (p *pump) close() {
	closeLogged(p.log, "queue", p.q)
}

// closeLogged closes c and logs a failure at warn level. A failed queue
// close leaves pool memory mapped but does not change the run's outcome.
func closeLogged(log zerolog.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("resource", what).Msg("close failed")
	}
}

func (p *pump) produce(ctx context.Context, id uint32) error {
	msg := make([]byte, max(p.cfg.Pool.BlockSize, headerLen))
	binary.BigEndian.PutUint32(msg, id)

	backoff := iox.Backoff{}
	for seq := 0; seq < p.cfg.Pump.Messages; {
		if ctx.Err() != nil {
			return nil
		}
		binary.BigEndian.PutUint32(msg[4:], uint32(seq))
		err := p.q.Send(msg)
		if msgq.IsWouldBlock(err) {
			if p.backpressure.Add(1)%1024 == 1 {
				p.log.Warn().Uint32("producer", id).Err(err).Msg("backpressure")
			}
			backoff.Wait()
			continue
		}
		if err != nil {
			return fmt.Errorf("producer %d: send %d: %w", id, seq, err)
		}
		backoff.Reset()
		p.sent.Add(1)
		seq++
	}
	p.log.Debug().Uint32("producer", id).Int("messages", p.cfg.Pump.Messages).Msg("producer done")
	return nil
}

func (p *pump) consume(ctx context.Context, id int, total int64) error {
	buf := make([]byte, max(p.cfg.Pool.BlockSize, headerLen))
	last := make(map[uint32]uint32)
	for p.received.Load() < total {
		if ctx.Err() != nil {
			return nil
		}
		n, err := p.q.Receive(buf, p.cfg.Pump.ReceiveTimeout)
		switch {
		case errors.Is(err, msgq.ErrTimeout):
			p.timeouts.Add(1)
			p.log.Debug().Int("consumer", id).Dur("timeout", p.cfg.Pump.ReceiveTimeout).Msg("receive timed out")
			continue
		case errors.Is(err, msgq.ErrClosed):
			return nil
		case err != nil:
			return fmt.Errorf("consumer %d: %w", id, err)
		case n < headerLen:
			return fmt.Errorf("consumer %d: short message of %d bytes", id, n)
		}
		producer, seq := binary.BigEndian.Uint32(buf), binary.BigEndian.Uint32(buf[4:])
		if prev, ok := last[producer]; ok && seq <= prev {
			p.outOfOrder.Add(1)
			p.log.Error().Int("consumer", id).Uint32("producer", producer).
				Uint32("seq", seq).Uint32("prev", prev).Msg("out of order")
		}
		last[producer] = seq
		p.received.Add(1)
	}
	return nil
}
