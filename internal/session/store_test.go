package session

import (
	"sync"
	"testing"
)

type fakePersister struct {
	mu     sync.Mutex
	saves  []*Snapshot
	clears int
}

func (f *fakePersister) Save(snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, snap)
	return nil
}

func (f *fakePersister) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakePersister) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakePersister) last() *Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return nil
	}
	return f.saves[len(f.saves)-1]
}

func testSettings() Settings {
	return Settings{
		JobTitle:     "Backend Engineer",
		NumQuestions: 5,
		SoftPct:      0.2,
		InitialLevel: 3,
	}
}

func TestSetLevelClampsOutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"below floor", 0, MinLevel},
		{"way below floor", -3, MinLevel},
		{"above ceiling", 6, MaxLevel},
		{"in range", 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(nil, nil)
			store.SetSettings(testSettings())
			store.SetLevel(tt.requested)
			if got := store.CurrentLevel(); got != tt.want {
				t.Fatalf("expected level %d, got %d", tt.want, got)
			}
		})
	}
}

func TestProgressIsMonotonicAndCapped(t *testing.T) {
	store := NewStore(nil, nil)
	store.SetSettings(testSettings())

	store.SetProgress(3, 5)
	store.SetProgress(2, 5)
	if got := store.AskedCount(); got != 3 {
		t.Fatalf("expected counter to stay at 3, got %d", got)
	}

	store.SetProgress(99, 5)
	if got := store.AskedCount(); got != 5 {
		t.Fatalf("expected counter capped at 5, got %d", got)
	}

	p := store.Progress()
	if p.Percent != 100 {
		t.Fatalf("expected percent capped at 100, got %v", p.Percent)
	}
}

func TestProgressDerivesObservedLevelDelta(t *testing.T) {
	store := NewStore(nil, nil)
	store.SetSettings(testSettings())

	if got := store.Progress().LevelDelta; got != 0 {
		t.Fatalf("expected zero delta before any answer, got %d", got)
	}

	store.SetLevel(2)
	if got := store.Progress().LevelDelta; got != -1 {
		t.Fatalf("expected delta -1 after lowering, got %d", got)
	}

	// A raise neutralized by the ceiling shows as no change.
	store.SetLevel(MaxLevel)
	store.SetLevel(MaxLevel + 1)
	if got := store.Progress().LevelDelta; got != 0 {
		t.Fatalf("expected clamped raise to show as 0, got %d", got)
	}
}

func TestPersisterNotifiedOnlyWithSession(t *testing.T) {
	persister := &fakePersister{}
	store := NewStore(persister, nil)

	store.SetSettings(testSettings())
	if persister.saveCount() != 0 {
		t.Fatalf("expected no saves before a session id is known")
	}

	store.SetSessionID("s-1")
	store.SetLevel(4)
	if persister.saveCount() < 2 {
		t.Fatalf("expected saves after the session id is set, got %d", persister.saveCount())
	}

	snap := persister.last()
	if snap.SessionID != "s-1" || snap.CurrentLevel != 4 {
		t.Fatalf("unexpected persisted snapshot: %+v", snap)
	}
}

func TestResetWipesStoreAndPersistedSnapshot(t *testing.T) {
	persister := &fakePersister{}
	store := NewStore(persister, nil)
	store.SetSessionID("s-1")
	store.SetSettings(testSettings())
	store.SetDraft("half-typed")
	store.AppendRecord(Record{Question: Question{Ordinal: 1, Text: "q"}})

	if err := store.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if persister.clears != 1 {
		t.Fatalf("expected one clear, got %d", persister.clears)
	}
	if store.SessionID() != "" || store.Draft() != "" || len(store.History()) != 0 {
		t.Fatalf("expected an empty store after reset")
	}
	if store.CurrentLevel() != MinLevel {
		t.Fatalf("expected level back at %d, got %d", MinLevel, store.CurrentLevel())
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	store := NewStore(nil, nil)
	store.SetSessionID("s-42")
	store.SetSettings(testSettings())
	store.SetDraft("do not persist me")
	store.AppendRecord(Record{
		Question: Question{Ordinal: 1, Text: "first", Level: 3, Category: CategoryTechnical},
		Answer:   "answer one",
	})
	store.SetProgress(1, 5)
	store.SetLevel(4)

	snap := store.Snapshot()
	if len(snap.Questions) != 1 || snap.Questions[0].Text != "first" {
		t.Fatalf("expected the asked question in the snapshot, got %+v", snap.Questions)
	}

	restored := NewStore(nil, nil)
	restored.Restore(snap)

	if restored.SessionID() != "s-42" {
		t.Fatalf("unexpected session id %q", restored.SessionID())
	}
	if restored.CurrentLevel() != 4 {
		t.Fatalf("expected level 4, got %d", restored.CurrentLevel())
	}
	if restored.AskedCount() != 1 || restored.TotalQuestions() != 5 {
		t.Fatalf("unexpected progress %d/%d", restored.AskedCount(), restored.TotalQuestions())
	}
	if restored.Draft() != "" {
		t.Fatalf("expected the draft to stay out of the snapshot")
	}
	if restored.Progress().LevelDelta != 0 {
		t.Fatalf("expected no phantom delta right after restore")
	}
	if len(restored.History()) != 1 || restored.History()[0].Question.Text != "first" {
		t.Fatalf("expected the asked questions back in history")
	}
}

func TestRestoreClampsCorruptedValues(t *testing.T) {
	store := NewStore(nil, nil)
	store.Restore(&Snapshot{
		SessionID:      "s-9",
		Settings:       testSettings(),
		CurrentLevel:   42,
		AskedCount:     10,
		TotalQuestions: 5,
	})

	if store.CurrentLevel() != MaxLevel {
		t.Fatalf("expected clamped level %d, got %d", MaxLevel, store.CurrentLevel())
	}
	if store.AskedCount() != 5 {
		t.Fatalf("expected asked count capped at 5, got %d", store.AskedCount())
	}
}

func TestSummaryFirstWriteWins(t *testing.T) {
	store := NewStore(nil, nil)
	store.SetSummary(&Summary{OverallScore: 80})
	store.SetSummary(&Summary{OverallScore: 10})

	if got := store.Summary().OverallScore; got != 80 {
		t.Fatalf("expected the first summary to stick, got score %v", got)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Settings)
		wantErr   bool
		wantField string
	}{
		{"valid", func(*Settings) {}, false, ""},
		{"missing title", func(s *Settings) { s.JobTitle = " " }, true, "job_title"},
		{"too few questions", func(s *Settings) { s.NumQuestions = 4 }, true, "num_questions"},
		{"too many questions", func(s *Settings) { s.NumQuestions = 21 }, true, "num_questions"},
		{"soft pct above one", func(s *Settings) { s.SoftPct = 1.5 }, true, "soft_pct"},
		{"level out of range", func(s *Settings) { s.InitialLevel = 0 }, true, "initial_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			tt.mutate(&settings)
			err := settings.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected a validation error, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Fatalf("expected field %q, got %q", tt.wantField, verr.Field)
			}
		})
	}
}
