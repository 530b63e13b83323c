package collector

// Periodic polling of configured targets into the sample store.

import (
	"context"
	"time"

	"github.com/tturner/s7dip/internal/config"
	"github.com/tturner/s7dip/internal/logging"
	"github.com/tturner/s7dip/internal/s7"
)

// AreaReader reads typed element ranges from a PLC.
type AreaReader interface {
	ReadArea(ctx context.Context, area s7.Area, dbNumber uint16, start uint32, dataType s7.DataType, elements uint32) ([]byte, error)
}

// Poller reads each configured target on a fixed interval and stores the
// results.
type Poller struct {
	reader   AreaReader
	store    *Store
	logger   *logging.Logger
	interval time.Duration
	targets  []config.Target
}

// NewPoller selects the poll targets from cfg. An empty poll target list
// selects every configured target.
func NewPoller(reader AreaReader, store *Store, logger *logging.Logger, cfg *config.Config) *Poller {
	targets := cfg.Targets
	if len(cfg.Poll.Targets) > 0 {
		wanted := make(map[string]bool, len(cfg.Poll.Targets))
		for _, name := range cfg.Poll.Targets {
			wanted[name] = true
		}
		targets = nil
		for _, t := range cfg.Targets {
			if wanted[t.Name] {
				targets = append(targets, t)
			}
		}
	}

	return &Poller{
		reader:   reader,
		store:    store,
		logger:   logger,
		interval: time.Duration(cfg.Poll.IntervalMs) * time.Millisecond,
		targets:  targets,
	}
}

// TargetCount reports how many targets the poller selected.
func (p *Poller) TargetCount() int {
	return len(p.targets)
}

// Run polls until the context is cancelled. The first poll happens
// immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce reads every selected target once. Read failures are logged and
// do not stop the remaining targets.
func (p *Poller) PollOnce(ctx context.Context) {
	for _, target := range p.targets {
		if ctx.Err() != nil {
			return
		}
		if err := p.pollTarget(ctx, target); err != nil {
			p.logger.Error("poll %s: %v", target.Name, err)
		}
	}
}

func (p *Poller) pollTarget(ctx context.Context, target config.Target) error {
	area, err := config.ParseArea(target.Area)
	if err != nil {
		return err
	}
	dataType, err := config.ParseDataType(target.DataType)
	if err != nil {
		return err
	}

	started := time.Now()
	value, err := p.reader.ReadArea(ctx, area, target.DBNumber, target.Start, dataType, target.Count)
	rtt := float64(time.Since(started).Microseconds()) / 1000.0
	p.logger.LogOperation("read", area, target.DBNumber, target.Start, target.Count, rtt, err)
	if err != nil {
		return err
	}

	return p.store.InsertSample(ctx, Sample{
		Target:    target.Name,
		Area:      target.Area,
		DBNumber:  target.DBNumber,
		Start:     target.Start,
		DataType:  target.DataType,
		Count:     target.Count,
		Value:     value,
		Timestamp: time.Now(),
	})
}
