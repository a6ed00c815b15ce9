package simulator

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/hl7"
	"github.com/openlis/astmsim/internal/pool"
	"github.com/openlis/astmsim/lis1"
	"github.com/openlis/astmsim/logger"
)

// DefaultPushDialTimeout bounds the TCP dial of one link push.
const DefaultPushDialTimeout = 5 * time.Second

// Pusher delivers one generated report to a target. Implementations cover
// the LIS1-A link, MLLP, and the bridge HTTP endpoint.
type Pusher interface {
	Push(ctx context.Context, rep *generator.Report) error
}

// PushFunc adapts a function to the Pusher interface.
type PushFunc func(ctx context.Context, rep *generator.Report) error

// Push calls f.
func (f PushFunc) Push(ctx context.Context, rep *generator.Report) error {
	return f(ctx, rep)
}

// LinkPusher transmits reports over the LIS1-A link as the instrument
// initiator: one connection and one full transmission per report.
type LinkPusher struct {
	target      string
	cfg         *lis1.SessionConfig
	dialTimeout time.Duration
}

// NewLinkPusher creates a pusher transmitting to the LIS1-A listener at
// target, using cfg for every session it opens. A nil cfg gets the default
// session configuration.
func NewLinkPusher(target string, cfg *lis1.SessionConfig) (*LinkPusher, error) {
	if cfg == nil {
		var err error
		cfg, err = lis1.NewSessionConfig()
		if err != nil {
			return nil, err
		}
	}

	return &LinkPusher{
		target:      target,
		cfg:         cfg,
		dialTimeout: DefaultPushDialTimeout,
	}, nil
}

// Push dials the target and runs one initiator transmission: establishment,
// one frame per record, EOT.
func (p *LinkPusher) Push(ctx context.Context, rep *generator.Report) error {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.target)
	if err != nil {
		return fmt.Errorf("simulator: dial %s: %w", p.target, err)
	}

	sess := lis1.NewSession(conn, p.cfg)
	defer func() {
		_ = sess.Close()
	}()

	return sess.Send(ctx, rep.Message())
}

// MLLPPusher delivers reports as HL7 ORU^R01 messages over MLLP.
type MLLPPusher struct {
	client *hl7.Client
}

// NewMLLPPusher creates a pusher delivering through client.
func NewMLLPPusher(client *hl7.Client) *MLLPPusher {
	return &MLLPPusher{client: client}
}

// Push renders the report as ORU^R01 and sends it.
func (p *MLLPPusher) Push(ctx context.Context, rep *generator.Report) error {
	_, err := p.client.Send(ctx, []byte(hl7.Render(rep)))

	return err
}

// BridgePusher posts reports as raw ASTM text straight to the bridge HTTP
// endpoint, bypassing the link protocol.
type BridgePusher struct {
	bridge *BridgeClient
}

// NewBridgePusher creates a pusher delivering through bridge.
func NewBridgePusher(bridge *BridgeClient) *BridgePusher {
	return &BridgePusher{bridge: bridge}
}

// Push renders the report as ASTM message text and posts it.
func (p *BridgePusher) Push(ctx context.Context, rep *generator.Report) error {
	return p.bridge.Deliver(ctx, bridgeText(rep.Message()))
}

// PushResult is the outcome of one push attempt.
type PushResult struct {
	MessageNumber int    `json:"message_number"`
	Success       bool   `json:"success"`
	AnalyzerType  string `json:"analyzer_type"`
	Error         string `json:"error,omitempty"`
}

// PushSummary aggregates a push run.
type PushSummary struct {
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []PushResult `json:"results"`
}

// PushRun executes a series of pushes: Count attempts spaced by Interval,
// or attempts until the context ends when Continuous is set.
//
// Run drives the generator from a single goroutine; a PushRun must not be
// shared.
type PushRun struct {
	// Generator supplies one report per attempt.
	Generator *generator.Generator
	// Pusher delivers each report.
	Pusher Pusher
	// AnalyzerType annotates each result.
	AnalyzerType string
	// Count is the number of attempts; values below 1 mean one attempt.
	// Ignored in continuous mode.
	Count int
	// Interval is the pause between attempts. Zero means back to back.
	Interval time.Duration
	// Continuous pushes until the context ends. Per-attempt results are not
	// accumulated in this mode, only counted.
	Continuous bool
	// Logger is optional; the package logger is used when nil.
	Logger logger.Logger
}

// Run executes the push run and returns its summary. A canceled context
// ends the run after the attempt in progress.
func (r *PushRun) Run(ctx context.Context) PushSummary {
	log := r.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	count := r.Count
	if count < 1 {
		count = 1
	}

	var summary PushSummary

	for number := 1; r.Continuous || number <= count; number++ {
		if ctx.Err() != nil {
			break
		}

		rep := r.Generator.Report()
		err := r.Pusher.Push(ctx, rep)

		summary.Total++

		result := PushResult{
			MessageNumber: number,
			Success:       err == nil,
			AnalyzerType:  r.AnalyzerType,
		}
		if err != nil {
			result.Error = err.Error()
			summary.Failed++
			log.Warn("simulator: push failed", "number", number, "error", err)
		} else {
			summary.Successful++
			log.Info("simulator: push delivered",
				"number", number, "sample", rep.Sample.ID, "observations", len(rep.Observations))
		}

		if !r.Continuous {
			summary.Results = append(summary.Results, result)
		}

		last := !r.Continuous && number == count
		if last || r.Interval <= 0 {
			continue
		}
		if !sleepInterval(ctx, r.Interval) {
			break
		}
	}

	return summary
}

// sleepInterval waits for the push interval, returning false when the
// context ends first.
func sleepInterval(ctx context.Context, d time.Duration) bool {
	timer := pool.GetTimer(d)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
