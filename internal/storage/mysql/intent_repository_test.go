package mysql

import (
	"context"
	"testing"
)

func sampleRecord(key string, occurredAt int64) IntentRecord {
	return IntentRecord{
		Account:     "0x1111111111111111111111111111111111111111",
		IntentKey:   key,
		Kind:        "intent.proposed",
		Role:        "AccountVault",
		Description: "demo",
		ActionCount: 1,
		OccurredAt:  occurredAt,
	}
}

func TestMemoryRepositorySaveAndList(t *testing.T) {
	repo, err := NewMemoryRepository(t.TempDir())
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if err := repo.Save(ctx, sampleRecord("intent", i)); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	records, err := repo.ListLatest(ctx, 2)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// 最近写入的排在最前。
	if records[0].OccurredAt != 3 || records[1].OccurredAt != 2 {
		t.Fatalf("unexpected ordering: %+v", records)
	}

	all, err := repo.ListLatest(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
}

func TestMemoryRepositoryReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewMemoryRepository(dir)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	if err := repo.Save(ctx, sampleRecord("persisted", 42)); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := NewMemoryRepository(dir)
	if err != nil {
		t.Fatalf("reload repository: %v", err)
	}
	records, err := reloaded.ListLatest(ctx, 10)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(records) != 1 || records[0].IntentKey != "persisted" || records[0].OccurredAt != 42 {
		t.Fatalf("unexpected reloaded records: %+v", records)
	}
}
