// Package encoder runs ffmpeg encodes through an ordered strategy list:
// the hardware path first, then exactly one software retry with an
// identical argument contract.
package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/toolexec"
)

// Strategy is one encode path, identified by its codec flag.
type Strategy struct {
	Name     string
	Codec    string
	Hardware bool
}

// Strategies derives the ordered attempt list from render config. An empty
// hardware encoder disables the hardware tier entirely.
func Strategies(cfg config.Render) []Strategy {
	var list []Strategy
	if cfg.HardwareEncoder != "" {
		list = append(list, Strategy{Name: "hardware", Codec: cfg.HardwareEncoder, Hardware: true})
	}
	if cfg.SoftwareEncoder != "" {
		list = append(list, Strategy{Name: "software", Codec: cfg.SoftwareEncoder})
	}
	return list
}

// Pool caps concurrent hardware encodes. The software path never takes a
// slot, so progress is possible even with the device fully occupied or gone.
type Pool struct {
	slots chan struct{}
}

// NewPool sizes the hardware gate; slots below one still allow a single
// occupant so a misconfigured zero never deadlocks.
func NewPool(slots int) *Pool {
	if slots < 1 {
		slots = 1
	}
	return &Pool{slots: make(chan struct{}, slots)}
}

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() {
	<-p.slots
}

// Request describes one encode. Args receives the strategy's codec and must
// return the full ffmpeg argument list; the codec flag is the only
// difference between attempts.
type Request struct {
	Args    func(codec string) []string
	Output  string
	Timeout time.Duration
}

// Encoder owns the ffmpeg binary, the strategy list, and the hardware gate.
type Encoder struct {
	runner     toolexec.Runner
	ffmpeg     string
	strategies []Strategy
	pool       *Pool
	logger     *slog.Logger
}

// New constructs an encoder from render config.
func New(runner toolexec.Runner, ffmpeg string, cfg config.Render, logger *slog.Logger) *Encoder {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Encoder{
		runner:     runner,
		ffmpeg:     ffmpeg,
		strategies: Strategies(cfg),
		pool:       NewPool(cfg.GPUSlots),
		logger:     logger.With(logging.String(logging.FieldComponent, "encoder")),
	}
}

// StrategyNames lists the configured attempt order, for diagnostics.
func (e *Encoder) StrategyNames() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name
	}
	return names
}

// Encode walks the strategy list until one attempt produces the output
// file. A failed attempt's partial output is removed before the next try.
// The returned string names the strategy that succeeded.
func (e *Encoder) Encode(ctx context.Context, req Request) (string, error) {
	if len(e.strategies) == 0 {
		return "", services.Wrap(services.ErrConfiguration, "encode", "strategies", "no encoder configured", nil)
	}
	if req.Args == nil || req.Output == "" {
		return "", services.Wrap(services.ErrValidation, "encode", "request", "args and output required", nil)
	}

	var lastErr error
	for _, strategy := range e.strategies {
		err := e.attempt(ctx, strategy, req)
		if err == nil {
			return strategy.Name, nil
		}
		lastErr = err
		_ = os.Remove(req.Output)
		e.logger.Warn("encode attempt failed",
			logging.String("strategy", strategy.Name),
			logging.String("codec", strategy.Codec),
			logging.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return "", services.Wrap(nil, "encode", "attempts",
		fmt.Sprintf("all %d encode strategies failed", len(e.strategies)), lastErr)
}

func (e *Encoder) attempt(ctx context.Context, strategy Strategy, req Request) error {
	if strategy.Hardware {
		if err := e.pool.acquire(ctx); err != nil {
			return err
		}
		defer e.pool.release()
	}

	_, err := e.runner.Run(ctx, toolexec.Command{
		Binary:  e.ffmpeg,
		Args:    req.Args(strategy.Codec),
		Timeout: req.Timeout,
	})
	if err != nil {
		return err
	}
	info, statErr := os.Stat(req.Output)
	if statErr != nil || info.Size() == 0 {
		return fmt.Errorf("encoder produced no output at %s", req.Output)
	}
	return nil
}
