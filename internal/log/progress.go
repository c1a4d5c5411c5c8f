package log

import (
	"time"

	"github.com/rs/zerolog"
)

// Progress reports completion counts for a long-running stage at a bounded
// rate, with a naive ETA from the average pace so far. Oracle calls run
// seconds each, so a whole-run stage over thousands of items needs feedback.
type Progress struct {
	log       zerolog.Logger
	stage     string
	total     int
	done      int
	started   time.Time
	lastEmit  time.Time
	minPeriod time.Duration
}

// NewProgress starts tracking a stage of total steps.
func NewProgress(log zerolog.Logger, stage string, total int) *Progress {
	return &Progress{
		log:       log,
		stage:     stage,
		total:     total,
		started:   time.Now(),
		minPeriod: 10 * time.Second,
	}
}

// Step records one completed unit and emits a progress line if enough time
// has passed since the last one.
func (p *Progress) Step() {
	p.done++
	if time.Since(p.lastEmit) < p.minPeriod && p.done != p.total {
		return
	}
	p.lastEmit = time.Now()

	event := p.log.Info().Str("stage", p.stage).Int("done", p.done).Int("total", p.total)
	if p.done > 0 && p.total > p.done {
		perStep := time.Since(p.started) / time.Duration(p.done)
		event = event.Dur("eta", perStep*time.Duration(p.total-p.done))
	}
	event.Msg("progress")
}
