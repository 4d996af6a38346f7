package store

import (
	"fmt"
	"testing"
)

func TestInsertPrependsAndDedupes(t *testing.T) {
	s := New()

	a := NewRecording(ModeRaw)
	b := NewRecording(ModeRaw)
	s.Insert(a)
	s.Insert(b)

	got := s.Snapshot()
	if len(got) != 2 {
		t.Fatalf("Len = %d, want 2", len(got))
	}
	if got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("order = [%s, %s], want most recent first", got[0].ID, got[1].ID)
	}

	// Re-inserting the same id must not create a second entry
	s.Insert(a)
	if s.Len() != 2 {
		t.Errorf("Len after duplicate insert = %d, want 2", s.Len())
	}
}

func TestInsertEvictsOldest(t *testing.T) {
	s := New()

	var first Recording
	for i := 0; i < MaxRecordings+10; i++ {
		rec := NewRecording(ModeRaw)
		rec.RawText = fmt.Sprintf("entry %d", i)
		if i == 0 {
			first = rec
		}
		s.Insert(rec)
	}

	if s.Len() != MaxRecordings {
		t.Fatalf("Len = %d, want %d", s.Len(), MaxRecordings)
	}
	if _, ok := s.Get(first.ID); ok {
		t.Error("oldest entry still present after overflow")
	}
	got := s.Snapshot()
	if got[0].RawText != fmt.Sprintf("entry %d", MaxRecordings+9) {
		t.Errorf("newest entry = %q, want the last inserted", got[0].RawText)
	}
}

func TestPatchBumpsUpdatedAt(t *testing.T) {
	s := New()
	rec := NewRecording(ModeRaw)
	s.Insert(rec)

	before, _ := s.Get(rec.ID)
	ok := s.Patch(rec.ID, func(r *Recording) {
		r.RawText = "hello"
	})
	if !ok {
		t.Fatal("Patch returned false for existing id")
	}
	after, _ := s.Get(rec.ID)
	if after.RawText != "hello" {
		t.Errorf("RawText = %q, want %q", after.RawText, "hello")
	}
	if after.UpdatedAt.Before(before.UpdatedAt) {
		t.Error("UpdatedAt went backwards")
	}

	if s.Patch("missing", func(r *Recording) { t.Error("fn called for absent id") }) {
		t.Error("Patch returned true for absent id")
	}
}

func TestUpdateStatusErrorMessage(t *testing.T) {
	s := New()
	rec := NewRecording(ModeRaw)
	s.Insert(rec)

	s.UpdateStatus(rec.ID, StatusFailed, "network unreachable")
	got, _ := s.Get(rec.ID)
	if got.Status != StatusFailed || got.ErrorMessage != "network unreachable" {
		t.Errorf("got %s/%q, want failed with message", got.Status, got.ErrorMessage)
	}

	// Leaving failed clears the message
	s.UpdateStatus(rec.ID, StatusProcessing, "")
	got, _ = s.Get(rec.ID)
	if got.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q after leaving failed, want empty", got.ErrorMessage)
	}
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	s := New()
	rec := NewRecording(ModeRaw)
	s.Insert(rec)

	if !s.Delete(rec.ID) {
		t.Error("Delete returned false for existing id")
	}
	if s.Delete(rec.ID) {
		t.Error("Delete returned true for already-deleted id")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestListFilter(t *testing.T) {
	s := New()

	raw := NewRecording(ModeRaw)
	raw.RawText = "the quick brown fox"
	s.Insert(raw)

	mod := NewRecording(ModeModified)
	mod.RawText = "um so basically"
	mod.RefinedText = "Basically, the plan works."
	s.Insert(mod)

	if got := s.List(Filter{}); len(got) != 2 {
		t.Fatalf("unfiltered = %d entries, want 2", len(got))
	}
	if got := s.List(Filter{Mode: ModeModified}); len(got) != 1 || got[0].ID != mod.ID {
		t.Errorf("mode filter returned wrong entries: %v", got)
	}
	// Search matches the visible transcript: refined text for modified entries
	if got := s.List(Filter{Search: "PLAN"}); len(got) != 1 || got[0].ID != mod.ID {
		t.Errorf("search should match refined text case-insensitively, got %v", got)
	}
	if got := s.List(Filter{Search: "basically", Mode: ModeRaw}); len(got) != 0 {
		t.Errorf("combined filter should exclude modified entry, got %v", got)
	}
}

func TestReplaceDedupesAndTruncates(t *testing.T) {
	s := New()

	dup := NewRecording(ModeRaw)
	dup.RawText = "kept"
	shadow := dup
	shadow.RawText = "dropped"

	restored := []Recording{dup, shadow}
	for i := 0; i < MaxRecordings+5; i++ {
		restored = append(restored, NewRecording(ModeRaw))
	}
	s.Replace(restored)

	if s.Len() != MaxRecordings {
		t.Errorf("Len = %d, want %d", s.Len(), MaxRecordings)
	}
	got, ok := s.Get(dup.ID)
	if !ok {
		t.Fatal("deduped entry missing")
	}
	if got.RawText != "kept" {
		t.Errorf("RawText = %q, want first occurrence to win", got.RawText)
	}
}

func TestOnChangeFires(t *testing.T) {
	s := New()
	var fired int
	s.OnChange(func() { fired++ })

	rec := NewRecording(ModeRaw)
	s.Insert(rec)
	s.Patch(rec.ID, func(r *Recording) { r.RawText = "x" })
	s.Delete(rec.ID)
	if fired != 3 {
		t.Errorf("onChange fired %d times, want 3", fired)
	}

	// Failed mutations stay silent
	s.Patch("missing", func(r *Recording) {})
	s.Delete("missing")
	if fired != 3 {
		t.Errorf("onChange fired on no-op mutation")
	}
}

func TestRecordingText(t *testing.T) {
	r := Recording{RawText: "raw words"}
	if got := r.Text(); got != "raw words" {
		t.Errorf("Text = %q, want raw text", got)
	}
	r.RefinedText = "Refined words."
	if got := r.Text(); got != "Refined words." {
		t.Errorf("Text = %q, want refined text", got)
	}
}
