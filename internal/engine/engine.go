package engine

import (
	"context"
	"fmt"

	"github.com/lazypower/vigil/internal/classify"
	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/consolidate"
	"github.com/lazypower/vigil/internal/detect"
	"github.com/lazypower/vigil/internal/llm"
	"github.com/lazypower/vigil/internal/memory"
	"github.com/lazypower/vigil/internal/store"
)

// Well-known event types reported by monitoring clients. Each carries a
// fixed trust penalty; quiz results use the configured deltas instead.
const (
	EventSmartphone = "SMARTPHONE_DETECTED"
	EventDrowsiness = "DROWSINESS_DETECTED"
	EventGaze       = "GAZE_DEVIATION"
	EventGame       = "GAME_EXECUTED"
	EventQuizPass   = "QUIZ_PASS"
	EventQuizFail   = "QUIZ_FAIL"
)

var trustPenalties = map[string]int{
	EventSmartphone: -5,
	EventDrowsiness: -3,
	EventGaze:       -2,
	EventGame:       -3,
}

// Engine ties the memory tiers, trust store, classification gate, and
// distraction detector into one facade. All HTTP and CLI entry points go
// through it.
type Engine struct {
	cfg          config.Config
	db           *store.DB
	buffer       *memory.Buffer
	events       *memory.Events
	archive      *memory.Archive
	contextB     *memory.ContextBuilder
	gate         *classify.Gate
	detector     *detect.Detector
	consolidator *consolidate.Consolidator
}

type Deps struct {
	DB        *store.DB
	LLM       llm.Client
	Embedder  memory.Embedder
	Searcher  classify.Searcher
	Blacklist *detect.Cache
}

// New wires an Engine from its dependencies. Nil Searcher disables search
// escalation; nil Embedder disables similarity retrieval but leaves the
// time index intact.
func New(cfg config.Config, deps Deps) *Engine {
	buf := memory.NewBuffer(cfg.Memory.BufferSize)
	events := memory.NewEvents(deps.DB, deps.Embedder)
	archive := memory.NewArchive(deps.DB, deps.Embedder)

	blacklist := deps.Blacklist
	if blacklist == nil {
		blacklist = detect.NewCache(&detect.StaticSource{Apps: detect.DefaultBlacklist}, 0)
		_ = blacklist.Refresh(context.Background())
	}

	return &Engine{
		cfg:          cfg,
		db:           deps.DB,
		buffer:       buf,
		events:       events,
		archive:      archive,
		contextB:     memory.NewContextBuilder(buf, events, archive, cfg.ContextTimeout()),
		gate:         classify.NewGate(deps.LLM, deps.Searcher, events, deps.DB, cfg.Trust),
		detector:     detect.NewDetector(blacklist, deps.LLM, events, deps.DB, cfg.Trust, cfg.Detector),
		consolidator: consolidate.New(deps.DB, deps.LLM, buf, events, archive),
	}
}

// Consolidator exposes the consolidator for scheduling.
func (e *Engine) Consolidator() *consolidate.Consolidator { return e.consolidator }

// Gate exposes the classification gate, mainly for tests.
func (e *Engine) Gate() *classify.Gate { return e.gate }

// EventReceipt is the result of recording one reported event.
type EventReceipt struct {
	Event    *store.Event `json:"event"`
	Delta    int          `json:"delta"`
	NewTrust int          `json:"new_trust"`
	Tier     string       `json:"tier"`
}

// RecordEvent stores a reported event and applies its trust consequence.
// Unknown event types are stored under SYSTEM with no trust change.
func (e *Engine) RecordEvent(ctx context.Context, userID, eventType, detail string) (*EventReceipt, error) {
	if userID == "" {
		return nil, fmt.Errorf("record event: user id required")
	}

	category := store.CategorySystem
	delta := 0
	switch eventType {
	case EventSmartphone, EventDrowsiness, EventGaze, EventGame:
		category = store.CategoryViolation
		delta = trustPenalties[eventType]
	case EventQuizPass:
		category = store.CategoryQuiz
		delta = e.cfg.Trust.QuizPassDelta
	case EventQuizFail:
		category = store.CategoryQuiz
		delta = e.cfg.Trust.QuizFailDelta
	}

	content := eventType
	if detail != "" {
		content = eventType + ": " + detail
	}
	ev, err := e.events.Record(ctx, userID, content, category, map[string]string{"type": eventType})
	if err != nil {
		return nil, err
	}

	score, err := e.db.GetTrustScore(userID)
	if delta != 0 {
		score, err = e.db.ApplyTrustDelta(userID, delta)
	}
	if err != nil {
		return nil, err
	}

	return &EventReceipt{
		Event:    ev,
		Delta:    delta,
		NewTrust: score,
		Tier:     store.TrustTier(score),
	}, nil
}

// ClassifyActivity runs the gate on one observation. The outcome's message,
// when present, is pushed into the conversation buffer so later context
// reflects what the supervisor said.
func (e *Engine) ClassifyActivity(ctx context.Context, sig *classify.Signals) (*classify.Outcome, error) {
	out, err := e.gate.Classify(ctx, sig)
	if out != nil && out.Message != "" {
		e.buffer.Append(sig.UserID, memory.Turn{Role: "supervisor", Text: out.Message})
	}
	return out, err
}

// ProcessHeartbeat runs the distraction detector on one heartbeat sample.
func (e *Engine) ProcessHeartbeat(ctx context.Context, hb *detect.Heartbeat) (*classify.Command, error) {
	return e.detector.Process(ctx, hb)
}

// TrustReport is a user's current score and tier.
type TrustReport struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
	Tier   string `json:"tier"`
}

// GetTrustScore reads a user's score without creating a row.
func (e *Engine) GetTrustScore(userID string) (*TrustReport, error) {
	score, err := e.db.GetTrustScore(userID)
	if err != nil {
		return nil, err
	}
	return &TrustReport{UserID: userID, Score: score, Tier: store.TrustTier(score)}, nil
}

// Consolidate drains a user's live events into a daily summary.
func (e *Engine) Consolidate(ctx context.Context, userID string) (*consolidate.Result, error) {
	return e.consolidator.Run(ctx, userID)
}

// BuildContext assembles the layered memory context for a query.
func (e *Engine) BuildContext(ctx context.Context, userID, query string) string {
	return e.contextB.Build(ctx, userID, query)
}

// RecordTurn appends a dialogue turn to the conversation buffer.
func (e *Engine) RecordTurn(userID, role, text string) {
	e.buffer.Append(userID, memory.Turn{Role: role, Text: text})
}
