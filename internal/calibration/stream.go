package calibration

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/model-health/modelhealth-go/internal/observability"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

const maxLineSize = 1 << 20

// Emitter receives delivered snapshots. Returning false stops the run.
type Emitter func(domain.CalibrationStatus) bool

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report dropped events.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor reads a newline delimited progress stream and drives a Machine.
type Processor struct {
	machine *Machine
	logger  *log.Logger
}

// NewProcessor constructs a Processor for one calibration run.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		machine: NewMachine(),
		logger:  log.New(log.Writer(), "[calibration] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes r until the run resolves, the stream ends or ctx is cancelled. Snapshots
// are passed to emit one at a time from the calling goroutine, in stream order.
func (p *Processor) Run(ctx context.Context, r io.Reader, emit Emitter) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		step, err := p.machine.Feed(line)
		if err != nil {
			p.drop(lineNo, err)
			continue
		}
		if step.Status != nil {
			observability.RecordCalibrationEvent("delivered")
			if !emit(*step.Status) {
				if err := ctx.Err(); err != nil {
					return err
				}
				return context.Canceled
			}
		}
		if step.Final {
			return step.Err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return &domain.InternalError{Op: "calibration", Err: fmt.Errorf("read progress stream: %w", err)}
	}
	return p.machine.Finish()
}

func (p *Processor) drop(lineNo int, err error) {
	outcome := "malformed"
	if errors.Is(err, ErrOutOfOrder) {
		outcome = "out_of_order"
	}
	observability.RecordCalibrationEvent(outcome)
	p.logger.Printf("dropped calibration event (line=%d): %v", lineNo, err)
}
