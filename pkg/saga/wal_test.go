package saga

import (
	"context"
	"testing"
)

func TestBadgerWALAppendAndList(t *testing.T) {
	wal, err := OpenBadgerWAL(t.TempDir())
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer wal.Close()

	ctx := context.Background()
	entries := []WALEntry{
		{SagaID: "s1", Step: "a", Type: WALEntryTypeStepStarted},
		{SagaID: "s1", Step: "a", Type: WALEntryTypeStepCompleted},
		{SagaID: "s1", Step: "b", Type: WALEntryTypeStepFailed, Detail: "boom"},
		{SagaID: "s2", Step: "x", Type: WALEntryTypeStepStarted},
	}
	for i, entry := range entries {
		seq, err := wal.Append(ctx, entry)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if seq == 0 {
			t.Fatalf("append %d returned zero sequence", i)
		}
	}

	got, err := wal.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("s1 entries = %d, want 3", len(got))
	}
	for i, entry := range got {
		if entry.Sequence != uint64(i+1) {
			t.Fatalf("sequence[%d] = %d", i, entry.Sequence)
		}
		if entry.Timestamp.IsZero() {
			t.Fatalf("entry %d missing timestamp", i)
		}
	}
	if got[2].Detail != "boom" {
		t.Fatalf("detail = %q", got[2].Detail)
	}
}

func TestBadgerWALSequencesArePerSaga(t *testing.T) {
	wal, err := OpenBadgerWAL(t.TempDir())
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer wal.Close()

	ctx := context.Background()
	s1, err := wal.Append(ctx, WALEntry{SagaID: "s1", Type: WALEntryTypeStepStarted})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := wal.Append(ctx, WALEntry{SagaID: "s2", Type: WALEntryTypeStepStarted})
	if err != nil {
		t.Fatal(err)
	}
	if s1 != 1 || s2 != 1 {
		t.Fatalf("sequences = %d %d, want both 1", s1, s2)
	}
}

func TestBadgerWALDeleteBySagaID(t *testing.T) {
	wal, err := OpenBadgerWAL(t.TempDir())
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer wal.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := wal.Append(ctx, WALEntry{SagaID: "s1", Type: WALEntryTypeStepStarted}); err != nil {
			t.Fatal(err)
		}
	}
	if err := wal.DeleteBySagaID(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := wal.List(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("entries after delete = %d", len(got))
	}

	// Sequence counter resets with the entries.
	seq, err := wal.Append(ctx, WALEntry{SagaID: "s1", Type: WALEntryTypeStepStarted})
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Fatalf("sequence after delete = %d, want 1", seq)
	}
}

func TestBadgerWALRejectsInvalidEntries(t *testing.T) {
	wal, err := OpenBadgerWAL(t.TempDir())
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer wal.Close()

	ctx := context.Background()
	if _, err := wal.Append(ctx, WALEntry{Type: WALEntryTypeStepStarted}); err == nil {
		t.Fatal("expected error for missing saga id")
	}
	if _, err := wal.Append(ctx, WALEntry{SagaID: "s1"}); err == nil {
		t.Fatal("expected error for missing type")
	}
}
