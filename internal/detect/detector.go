package detect

import (
	"context"
	"fmt"
	"log"

	"github.com/lazypower/vigil/internal/classify"
	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/llm"
	"github.com/lazypower/vigil/internal/memory"
	"github.com/lazypower/vigil/internal/store"
)

// Heartbeat is one lightweight client sample: input telemetry for the
// heuristic gate plus the current running-app list. Samples are judged and
// discarded, never stored.
type Heartbeat struct {
	UserID          string   `json:"user_id"`
	Apps            []string `json:"apps"`
	KeystrokeCount  int      `json:"keystroke_count"`
	KeyboardEntropy float64  `json:"keyboard_entropy"`
	ClickCount      int      `json:"click_count"`
	MouseDistancePx float64  `json:"mouse_distance_px"`
}

// Detector screens heartbeats through two cheap layers before any AI call:
// blacklist membership, then the input heuristic. Only suspicious input
// with unknown apps reaches the game-scan classifier.
type Detector struct {
	cache  *Cache
	llm    llm.Client
	events *memory.Events
	db     *store.DB
	trust  config.TrustConfig
	cfg    config.DetectorConfig
}

// NewDetector wires the distraction detector. The cache is injected, not
// global: it belongs to this instance and its refresh loop.
func NewDetector(cache *Cache, client llm.Client, events *memory.Events, db *store.DB, trust config.TrustConfig, cfg config.DetectorConfig) *Detector {
	return &Detector{
		cache:  cache,
		llm:    client,
		events: events,
		db:     db,
		trust:  trust,
		cfg:    cfg,
	}
}

// suspicious reports whether the input telemetry looks game-like: mashing a
// few keys over and over (low entropy, real volume), or heavy mouse action.
func (d *Detector) suspicious(hb *Heartbeat) bool {
	if hb.KeystrokeCount >= d.cfg.MinKeystrokes && hb.KeyboardEntropy < d.cfg.EntropyThreshold {
		return true
	}
	if hb.ClickCount > d.cfg.ClickThreshold {
		return true
	}
	if hb.MouseDistancePx > d.cfg.MouseTravelPx {
		return true
	}
	return false
}

// Process judges one heartbeat. The returned error reports store-side
// write failures; the command is always usable.
func (d *Detector) Process(ctx context.Context, hb *Heartbeat) (*classify.Command, error) {
	// Layer 1: O(1) blacklist membership short-circuits everything.
	for _, app := range hb.Apps {
		if entry, ok := d.cache.Match(app); ok {
			return d.punish(ctx, hb.UserID, app, entry, "blacklist")
		}
	}

	// Layer 2: only game-like input warrants an AI call.
	if !d.suspicious(hb) {
		return &classify.Command{Action: classify.ActionNone}, nil
	}

	unknown := d.unknownApps(hb.Apps)
	if len(unknown) == 0 {
		return &classify.Command{Action: classify.ActionNone}, nil
	}

	scan, err := d.scanApps(ctx, unknown)
	if err != nil {
		// Transient: skip this sample rather than blocking the stream.
		log.Printf("detect: %v", err)
		return &classify.Command{Action: classify.ActionNone}, nil
	}

	if !scan.Detected {
		// Cleared apps stop costing classifier calls.
		d.cache.LearnSafe(unknown...)
		return &classify.Command{Action: classify.ActionNone}, nil
	}

	target := scan.Target
	if target == "" && len(scan.Games) > 0 {
		target = scan.Games[0]
	}
	for _, game := range scan.Games {
		d.cache.LearnBlacklist(game)
	}
	if target != "" {
		d.cache.LearnBlacklist(target)
	}

	cmd, err := d.punish(ctx, hb.UserID, target, target, "ai-verdict")
	if scan.Message != "" {
		cmd.Message = scan.Message
	}
	return cmd, err
}

// punish emits the kill command plus the trust and memory side effects for
// a confirmed game.
func (d *Detector) punish(ctx context.Context, userID, app, entry, source string) (*classify.Command, error) {
	cmd := &classify.Command{
		Action:    classify.ActionKill,
		TargetApp: app,
		Message:   fmt.Sprintf("Detected %s running. Shutting it down.", entry),
	}

	if _, err := d.events.Record(ctx, userID, "User was caught playing: "+app,
		store.CategoryViolation, map[string]string{"source": source}); err != nil {
		return cmd, fmt.Errorf("record heartbeat violation: %w", err)
	}
	if _, err := d.db.ApplyTrustDelta(userID, d.trust.ViolationDelta); err != nil {
		return cmd, fmt.Errorf("heartbeat trust update: %w", err)
	}
	return cmd, nil
}

func (d *Detector) unknownApps(apps []string) []string {
	var unknown []string
	for _, app := range apps {
		if app == "" || d.cache.IsSafe(app) {
			continue
		}
		unknown = append(unknown, app)
	}
	return unknown
}

func (d *Detector) scanApps(ctx context.Context, apps []string) (*llm.GameScan, error) {
	if d.llm == nil {
		return nil, fmt.Errorf("no game classifier configured")
	}
	resp, err := d.llm.Complete(ctx, llm.GameScanPrompt(apps))
	if err != nil {
		return nil, fmt.Errorf("game scan call: %w", err)
	}
	scan, err := llm.ParseGameScan(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("game scan response: %w", err)
	}
	return scan, nil
}
