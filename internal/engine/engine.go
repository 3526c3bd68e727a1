// Package engine serializes lifecycle operations arriving over the HTTP
// surface. The orchestrator is single-threaded by design; the engine is the
// one goroutine allowed to drive it, pulling intents off a channel one at a
// time.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rshade/streamctl/internal/orchestrator"
)

// Verb is a lifecycle operation name.
type Verb string

const (
	VerbStart   Verb = "start"
	VerbStop    Verb = "stop"
	VerbRestart Verb = "restart"
)

// ParseVerb maps a string onto a Verb.
func ParseVerb(s string) (Verb, bool) {
	switch Verb(s) {
	case VerbStart, VerbStop, VerbRestart:
		return Verb(s), true
	}
	return "", false
}

// Intent is a request to run one lifecycle operation.
type Intent struct {
	Verb   Verb
	Source string // "api", "cloudwatch"
	Reason string
}

// Lifecycle is the slice of the orchestrator the engine drives.
type Lifecycle interface {
	Start(ctx context.Context) (*orchestrator.StatusReport, error)
	Stop(ctx context.Context) (*orchestrator.StatusReport, error)
	Restart(ctx context.Context) (*orchestrator.StatusReport, error)
	Status(ctx context.Context) (*orchestrator.StatusReport, error)
}

type Engine struct {
	orch     Lifecycle
	cooldown time.Duration

	IntentChan chan Intent

	mu         sync.Mutex
	lastRun    time.Time
	lastReport *orchestrator.StatusReport
}

func New(orch Lifecycle, cooldown time.Duration) *Engine {
	return &Engine{
		orch:       orch,
		cooldown:   cooldown,
		IntentChan: make(chan Intent, 16),
	}
}

// Run consumes intents until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	log.Info().Msg("Engine started, waiting for intents...")
	for {
		select {
		case <-ctx.Done():
			return
		case intent := <-e.IntentChan:
			e.Process(ctx, intent)
		}
	}
}

// Enqueue offers an intent without blocking. False means the queue is full.
func (e *Engine) Enqueue(intent Intent) bool {
	select {
	case e.IntentChan <- intent:
		return true
	default:
		return false
	}
}

// Process runs one intent to completion.
func (e *Engine) Process(ctx context.Context, intent Intent) {
	log.Info().
		Str("verb", string(intent.Verb)).
		Str("source", intent.Source).
		Str("reason", intent.Reason).
		Msg("Processing intent")

	if !e.checkCooldown() {
		log.Info().Str("verb", string(intent.Verb)).Msg("Skipping intent: cooldown active")
		return
	}

	startTime := time.Now()
	var (
		rep *orchestrator.StatusReport
		err error
	)
	switch intent.Verb {
	case VerbStart:
		rep, err = e.orch.Start(ctx)
	case VerbStop:
		rep, err = e.orch.Stop(ctx)
	case VerbRestart:
		rep, err = e.orch.Restart(ctx)
	default:
		log.Error().Str("verb", string(intent.Verb)).Msg("Unknown verb")
		return
	}

	e.mu.Lock()
	e.lastRun = time.Now()
	if rep != nil {
		e.lastReport = rep
	}
	e.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("verb", string(intent.Verb)).Msg("Lifecycle operation failed")
		return
	}
	log.Info().
		Str("verb", string(intent.Verb)).
		Dur("duration", time.Since(startTime)).
		Msg("Lifecycle operation complete")
}

// Status returns a fresh read-only snapshot and retains it.
func (e *Engine) Status(ctx context.Context) (*orchestrator.StatusReport, error) {
	rep, err := e.orch.Status(ctx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.lastReport = rep
	e.mu.Unlock()
	return rep, nil
}

// LastReport returns the most recent report, nil if none yet.
func (e *Engine) LastReport() *orchestrator.StatusReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReport
}

func (e *Engine) checkCooldown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastRun.IsZero() {
		return true
	}
	return time.Since(e.lastRun) >= e.cooldown
}
