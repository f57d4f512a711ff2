package classify

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/llm"
	"github.com/lazypower/vigil/internal/memory"
	"github.com/lazypower/vigil/internal/store"
)

// Labels produced by classification.
const (
	LabelStudy   = "STUDY"
	LabelPlay    = "PLAY"
	LabelUnknown = "UNKNOWN"
)

// Command actions emitted back to the client.
const (
	ActionNone  = "NONE"
	ActionKill  = "KILL"
	ActionScold = "SCOLD"
)

// Command tells the client what to do about an observation.
type Command struct {
	Action    string `json:"action"`
	TargetApp string `json:"target_app,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Thresholds for the gate. Escalation happens below EscalationThreshold;
// PLAY side effects require ViolationThreshold; a kill additionally
// requires KillThreshold and a kill-list match.
const (
	EscalationThreshold = 0.8
	ViolationThreshold  = 0.6
	KillThreshold       = 0.75
)

// Signals are the observable inputs for one classification request.
type Signals struct {
	UserID      string   `json:"user_id"`
	ProcessName string   `json:"process_name"`
	WindowTitle string   `json:"window_title"`
	URL         string   `json:"url"`
	Windows     []string `json:"windows,omitempty"`
	MediaString string   `json:"media,omitempty"` // "artist - title (app)"
	CPUPercent  float64  `json:"cpu_percent,omitempty"`
	UptimeSec   int64    `json:"uptime_sec,omitempty"`
}

func (s *Signals) content() string {
	if s.URL != "" {
		return s.URL
	}
	if s.WindowTitle != "" {
		return s.ProcessName + " - " + s.WindowTitle
	}
	return s.ProcessName
}

// Outcome is the result of one classification, always best-effort: a failed
// external call yields UNKNOWN with zero confidence, never an error to the
// end user.
type Outcome struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Message    string  `json:"message,omitempty"`
	Command    Command `json:"command"`
	NewTrust   int     `json:"new_trust,omitempty"`
	FastPath   bool    `json:"fast_path"`
	Escalated  bool    `json:"escalated"`
}

// Gate is the two-stage classification pipeline with bounded escalation.
type Gate struct {
	llm      llm.Client
	searcher Searcher
	events   *memory.Events
	db       *store.DB
	trust    config.TrustConfig
	rng      func() float64
}

// NewGate wires the classification gate. searcher may be nil, which
// disables escalation.
func NewGate(client llm.Client, searcher Searcher, events *memory.Events, db *store.DB, trust config.TrustConfig) *Gate {
	return &Gate{
		llm:      client,
		searcher: searcher,
		events:   events,
		db:       db,
		trust:    trust,
		rng:      rand.Float64,
	}
}

// SetRand replaces the randomness source for the probabilistic achievement
// recording. Tests pin it.
func (g *Gate) SetRand(f func() float64) {
	g.rng = f
}

// Classify runs the gate for one observation. The returned error reports
// store-side failures (trust or event writes) for the caller to retry; the
// Outcome itself is always usable.
func (g *Gate) Classify(ctx context.Context, sig *Signals) (*Outcome, error) {
	out := &Outcome{Label: LabelUnknown, Command: Command{Action: ActionNone}}

	if fast := FastPath(sig.ProcessName, sig.URL); fast != nil {
		out.Label = fast.Label
		out.Confidence = 1.0
		out.Reason = fast.Reason
		out.FastPath = true
	} else {
		g.slowPath(ctx, sig, out)
	}

	return out, g.applySideEffects(ctx, sig, out)
}

// slowPath asks the external classifier, escalating once through web search
// when the verdict is shaky. Any dependency failure leaves the UNKNOWN
// default in place.
func (g *Gate) slowPath(ctx context.Context, sig *Signals, out *Outcome) {
	if g.llm == nil {
		out.Reason = "no classifier configured"
		return
	}

	promptCtx := buildPromptContext(sig)

	verdict, err := g.classifyOnce(ctx, promptCtx)
	if err != nil {
		log.Printf("classify: %v", err)
		out.Reason = "classifier unavailable"
		return
	}

	if (verdict.Confidence < EscalationThreshold || verdict.Label == LabelUnknown) && g.searcher != nil {
		if query := searchQuery(sig); query != "" {
			log.Printf("classify: low confidence (%.2f), searching: %s", verdict.Confidence, query)
			searchCtx, err := g.searcher.Search(ctx, query)
			if err != nil {
				log.Printf("classify: search failed: %v", err)
			} else {
				// One supplementary search, one re-classification, no
				// further escalation.
				if second, err := g.classifyOnce(ctx, promptCtx+"\n\n"+searchCtx); err != nil {
					log.Printf("classify: re-classification failed: %v", err)
				} else {
					verdict = second
					out.Escalated = true
				}
			}
		}
	}

	out.Label = verdict.Label
	out.Confidence = verdict.Confidence
	out.Reason = verdict.Reason
	out.Message = verdict.Message
}

func (g *Gate) classifyOnce(ctx context.Context, promptCtx string) (*llm.Verdict, error) {
	resp, err := g.llm.Complete(ctx, llm.ClassifyPrompt(promptCtx))
	if err != nil {
		return nil, fmt.Errorf("classifier call: %w", err)
	}
	verdict, err := llm.ParseVerdict(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("classifier response: %w", err)
	}
	return verdict, nil
}

// applySideEffects records events and trust deltas for the outcome.
func (g *Gate) applySideEffects(ctx context.Context, sig *Signals, out *Outcome) error {
	content := sig.content()

	switch out.Label {
	case LabelStudy:
		score, err := g.db.ApplyTrustDelta(sig.UserID, g.trust.StudyDelta)
		if err != nil {
			return fmt.Errorf("study trust update: %w", err)
		}
		out.NewTrust = score

		// Recorded probabilistically so a long study session does not
		// flood the event tier.
		if g.rng() < g.trust.AchievementOdds {
			if _, err := g.events.Record(ctx, sig.UserID, "User was studying: "+content,
				store.CategoryAchievement, map[string]string{"category": LabelStudy}); err != nil {
				return fmt.Errorf("record achievement: %w", err)
			}
		}

	case LabelPlay:
		if out.Confidence < ViolationThreshold {
			log.Printf("classify: play detected but low confidence (%.2f), skipping side effects", out.Confidence)
			return nil
		}

		if _, err := g.events.Record(ctx, sig.UserID, "User was caught playing: "+content,
			store.CategoryViolation, map[string]string{"source": "ActiveWindow", "category": LabelPlay}); err != nil {
			return fmt.Errorf("record violation: %w", err)
		}
		score, err := g.db.ApplyTrustDelta(sig.UserID, g.trust.ViolationDelta)
		if err != nil {
			return fmt.Errorf("violation trust update: %w", err)
		}
		out.NewTrust = score

		out.Command = Command{Action: ActionScold, Message: out.Message}
		if out.Confidence > KillThreshold {
			if target, ok := OnKillList(content); ok {
				out.Command = Command{
					Action:    ActionKill,
					TargetApp: sig.ProcessName,
					Message:   fmt.Sprintf("Detected %s. Closing it.", target),
				}
			}
		}
	}
	return nil
}

// buildPromptContext assembles the slow-path context string from whatever
// signals were reported.
func buildPromptContext(sig *Signals) string {
	var lines []string

	if sig.URL != "" {
		lines = append(lines, "URL: "+sig.URL)
	} else {
		lines = append(lines, "Process Name: "+sig.ProcessName)
		lines = append(lines, "Window Title: "+sig.WindowTitle)
	}
	if sig.MediaString != "" {
		lines = append(lines, "Media Playing: "+sig.MediaString)
	}
	if len(sig.Windows) > 0 {
		var clean []string
		for _, w := range sig.Windows {
			if w != "" {
				clean = append(clean, w)
			}
		}
		if len(clean) > 0 {
			lines = append(lines, "Open Windows: "+strings.Join(clean, ", "))
		}
	}
	if sig.CPUPercent > 0 {
		lines = append(lines, fmt.Sprintf("System: CPU %.0f%%, Uptime %dm", sig.CPUPercent, sig.UptimeSec/60))
		if sig.CPUPercent > 85.0 {
			lines = append(lines, "Note: System is under heavy load.")
		}
	}
	return strings.Join(lines, "\n")
}

func searchQuery(sig *Signals) string {
	if sig.ProcessName != "" {
		return strings.TrimSpace(sig.ProcessName + " " + sig.WindowTitle + " software what is this")
	}
	if sig.URL != "" {
		return sig.URL + " website what is this"
	}
	return ""
}
