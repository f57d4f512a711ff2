package store

import (
	"testing"
)

func TestInsertAndRangeEvents(t *testing.T) {
	db := testDB(t)

	events := []Event{
		{ID: "ev-1", UserID: "dev1", Category: CategoryStudy, Content: "read sqlite docs", CreatedAt: 1000},
		{ID: "ev-2", UserID: "dev1", Category: CategoryViolation, Content: "caught playing", CreatedAt: 2000,
			Metadata: map[string]string{"source": "ActiveWindow"}},
		{ID: "ev-3", UserID: "dev2", Category: CategoryStudy, Content: "other user", CreatedAt: 1500},
	}
	for i := range events {
		if err := db.InsertEvent(&events[i]); err != nil {
			t.Fatalf("InsertEvent(%s): %v", events[i].ID, err)
		}
	}

	got, err := db.EventsSince("dev1", 0)
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(got))
	}
	if got[0].ID != "ev-1" || got[1].ID != "ev-2" {
		t.Errorf("order = [%s %s], want [ev-1 ev-2]", got[0].ID, got[1].ID)
	}
	if got[1].Metadata["source"] != "ActiveWindow" {
		t.Errorf("metadata source = %q, want ActiveWindow", got[1].Metadata["source"])
	}

	// Range filter excludes the lower bound
	got, err = db.EventsSince("dev1", 1000)
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ev-2" {
		t.Fatalf("events after 1000 = %v, want only ev-2", got)
	}
}

func TestEventEmbeddingRoundTrip(t *testing.T) {
	db := testDB(t)

	ev := Event{
		ID:        "ev-1",
		UserID:    "dev1",
		Category:  CategoryAchievement,
		Content:   "finished chapter",
		Embedding: []float64{0.1, -0.5, 0.25},
		Model:     "tfidf",
		CreatedAt: 1000,
	}
	if err := db.InsertEvent(&ev); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	got, err := db.EventsSince("dev1", 0)
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(got))
	}
	if len(got[0].Embedding) != 3 {
		t.Fatalf("embedding dims = %d, want 3", len(got[0].Embedding))
	}
	for i, v := range ev.Embedding {
		if got[0].Embedding[i] != v {
			t.Errorf("embedding[%d] = %f, want %f", i, got[0].Embedding[i], v)
		}
	}
	if got[0].Model != "tfidf" {
		t.Errorf("model = %q, want tfidf", got[0].Model)
	}
}

func TestDeleteEventsThrough(t *testing.T) {
	db := testDB(t)

	for _, ev := range []Event{
		{ID: "ev-1", UserID: "dev1", Category: CategoryStudy, Content: "a", CreatedAt: 1000},
		{ID: "ev-2", UserID: "dev1", Category: CategoryStudy, Content: "b", CreatedAt: 2000},
		{ID: "ev-3", UserID: "dev1", Category: CategoryStudy, Content: "c", CreatedAt: 3000},
		{ID: "ev-4", UserID: "dev2", Category: CategoryStudy, Content: "d", CreatedAt: 1000},
	} {
		e := ev
		if err := db.InsertEvent(&e); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}

	n, err := db.DeleteEventsThrough("dev1", 2000)
	if err != nil {
		t.Fatalf("DeleteEventsThrough: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	remaining, _ := db.EventsSince("dev1", 0)
	if len(remaining) != 1 || remaining[0].ID != "ev-3" {
		t.Errorf("remaining = %v, want only ev-3", remaining)
	}

	// Other users untouched
	other, _ := db.EventsSince("dev2", 0)
	if len(other) != 1 {
		t.Errorf("dev2 events = %d, want 1", len(other))
	}
}

func TestConsolidationEpoch(t *testing.T) {
	db := testDB(t)

	epoch, err := db.ConsolidationEpoch("dev1")
	if err != nil {
		t.Fatalf("ConsolidationEpoch: %v", err)
	}
	if epoch != 0 {
		t.Errorf("epoch = %d, want 0 for new user", epoch)
	}

	if err := db.SetConsolidationEpoch("dev1", 5000); err != nil {
		t.Fatalf("SetConsolidationEpoch: %v", err)
	}
	epoch, _ = db.ConsolidationEpoch("dev1")
	if epoch != 5000 {
		t.Errorf("epoch = %d, want 5000", epoch)
	}

	// Advancing again overwrites
	if err := db.SetConsolidationEpoch("dev1", 9000); err != nil {
		t.Fatalf("SetConsolidationEpoch: %v", err)
	}
	epoch, _ = db.ConsolidationEpoch("dev1")
	if epoch != 9000 {
		t.Errorf("epoch = %d, want 9000", epoch)
	}
}
