package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/lazypower/vigil/internal/classify"
	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/detect"
	"github.com/lazypower/vigil/internal/llm"
	"github.com/lazypower/vigil/internal/store"
)

func testEngine(t *testing.T, client llm.Client) (*Engine, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if client == nil {
		client = &llm.MockClient{Response: &llm.Response{Content: `{"label": "UNKNOWN", "confidence": 0.0}`}}
	}
	eng := New(config.Default(), Deps{DB: db, LLM: client})
	return eng, db
}

func TestRecordEventPenalties(t *testing.T) {
	eng, _ := testEngine(t, nil)
	ctx := context.Background()

	tests := []struct {
		eventType string
		wantDelta int
		wantCat   string
	}{
		{EventSmartphone, -5, store.CategoryViolation},
		{EventDrowsiness, -3, store.CategoryViolation},
		{EventGaze, -2, store.CategoryViolation},
		{EventGame, -3, store.CategoryViolation},
		{EventQuizPass, 5, store.CategoryQuiz},
		{EventQuizFail, -3, store.CategoryQuiz},
		{"CAMERA_STARTED", 0, store.CategorySystem},
	}
	for _, tt := range tests {
		rec, err := eng.RecordEvent(ctx, "user-"+tt.eventType, tt.eventType, "detail")
		if err != nil {
			t.Fatalf("RecordEvent(%s): %v", tt.eventType, err)
		}
		if rec.Delta != tt.wantDelta {
			t.Errorf("%s: delta = %d, want %d", tt.eventType, rec.Delta, tt.wantDelta)
		}
		if rec.Event.Category != tt.wantCat {
			t.Errorf("%s: category = %s, want %s", tt.eventType, rec.Event.Category, tt.wantCat)
		}
		if rec.NewTrust != store.DefaultTrustScore+tt.wantDelta {
			t.Errorf("%s: trust = %d, want %d", tt.eventType, rec.NewTrust, store.DefaultTrustScore+tt.wantDelta)
		}
	}
}

func TestRecordEventRequiresUser(t *testing.T) {
	eng, _ := testEngine(t, nil)
	if _, err := eng.RecordEvent(context.Background(), "", EventGame, ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestTrustLifecycle(t *testing.T) {
	eng, _ := testEngine(t, nil)
	ctx := context.Background()

	rep, err := eng.GetTrustScore("dev1")
	if err != nil {
		t.Fatalf("GetTrustScore: %v", err)
	}
	if rep.Score != 50 || rep.Tier != store.TierMid {
		t.Fatalf("fresh user = %d/%s, want 50/%s", rep.Score, rep.Tier, store.TierMid)
	}

	// Three violations, then a passed quiz.
	for _, ev := range []string{EventSmartphone, EventSmartphone, EventSmartphone} {
		if _, err := eng.RecordEvent(ctx, "dev1", ev, ""); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}
	rec, err := eng.RecordEvent(ctx, "dev1", EventQuizPass, "scored 90")
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if rec.NewTrust != 40 {
		t.Errorf("trust = %d, want 40 (50 -5 -5 -5 +5)", rec.NewTrust)
	}
	if rec.Tier != store.TierMid {
		t.Errorf("tier = %s, want %s", rec.Tier, store.TierMid)
	}
}

func TestClassifyActivityMessageEntersBuffer(t *testing.T) {
	client := &llm.MockClient{Response: &llm.Response{
		Content: `{"label": "PLAY", "confidence": 0.9, "reason": "gaming", "message": "Back to work."}`,
	}}
	eng, _ := testEngine(t, client)

	out, err := eng.ClassifyActivity(context.Background(), &classify.Signals{
		UserID:      "dev1",
		ProcessName: "game.exe",
		WindowTitle: "Some Game",
	})
	if err != nil {
		t.Fatalf("ClassifyActivity: %v", err)
	}
	if out.Label != classify.LabelPlay {
		t.Errorf("label = %s, want PLAY", out.Label)
	}

	ctx := eng.BuildContext(context.Background(), "dev1", "")
	if !strings.Contains(ctx, "Back to work.") {
		t.Errorf("context missing supervisor message:\n%s", ctx)
	}
}

func TestProcessHeartbeatBlacklist(t *testing.T) {
	eng, db := testEngine(t, nil)

	cmd, err := eng.ProcessHeartbeat(context.Background(), &detect.Heartbeat{
		UserID: "dev1",
		Apps:   []string{"Steam Client"},
	})
	if err != nil {
		t.Fatalf("ProcessHeartbeat: %v", err)
	}
	if cmd.Action != classify.ActionKill {
		t.Errorf("action = %s, want KILL", cmd.Action)
	}
	score, err := db.GetTrustScore("dev1")
	if err != nil {
		t.Fatalf("GetTrustScore: %v", err)
	}
	if score != 45 {
		t.Errorf("trust = %d, want 45", score)
	}
}

func TestConsolidateRoundTrip(t *testing.T) {
	client := &llm.MockClient{Response: &llm.Response{Content: "User reported violations all day."}}
	eng, db := testEngine(t, client)
	ctx := context.Background()

	if _, err := eng.RecordEvent(ctx, "dev1", EventGame, "launched Steam"); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	res, err := eng.Consolidate(ctx, "dev1")
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if res.EventCount != 1 {
		t.Errorf("EventCount = %d, want 1", res.EventCount)
	}
	if res.TrustSnapshot != 47 {
		t.Errorf("TrustSnapshot = %d, want 47", res.TrustSnapshot)
	}

	summaries, err := db.SummariesForUser("dev1", 10)
	if err != nil {
		t.Fatalf("SummariesForUser: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}

	// Consolidated events no longer show up in live context.
	text := eng.BuildContext(ctx, "dev1", "")
	if strings.Contains(text, "launched Steam") {
		t.Errorf("consolidated event leaked into context:\n%s", text)
	}
	if !strings.Contains(text, "violations all day") {
		t.Errorf("context missing archived summary:\n%s", text)
	}
}

func TestBuildContextIncludesTurns(t *testing.T) {
	eng, _ := testEngine(t, nil)

	eng.RecordTurn("dev1", "user", "what should I study next?")
	text := eng.BuildContext(context.Background(), "dev1", "")
	if !strings.Contains(text, "what should I study next?") {
		t.Errorf("context missing conversation turn:\n%s", text)
	}
}
