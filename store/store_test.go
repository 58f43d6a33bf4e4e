package store

import (
	"context"
	"testing"
	"time"

	"github.com/evrec/evrec/core"
)

func TestMemoryStoreBasic(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k1")
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Errorf("miss err = %v, want not-found", err)
	}

	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k1"); !core.IsStoreNotFound(err) {
		t.Error("deleted key still readable")
	}
}

func TestMemoryStoreBatch(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	kvs := map[string][]byte{"a": []byte("1"), "b": []byte("2")}
	if err := s.BatchSet(ctx, kvs); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}
	got, err := s.BatchGet(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("BatchGet: %v", err)
	}
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Errorf("BatchGet = %v", got)
	}
}

func TestMemoryStoreZSet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	s.ZAdd(ctx, "hot", 90, "evt-1")
	s.ZAdd(ctx, "hot", 70, "evt-3")
	s.ZAdd(ctx, "hot", 80, "evt-2")

	members, err := s.ZRange(ctx, "hot", 0, 1)
	if err != nil {
		t.Fatalf("ZRange: %v", err)
	}
	if len(members) != 2 || members[0] != "evt-1" || members[1] != "evt-2" {
		t.Errorf("ZRange = %v, want [evt-1 evt-2] (score desc)", members)
	}

	score, err := s.ZScore(ctx, "hot", "evt-3")
	if err != nil || score != 70 {
		t.Errorf("ZScore = %f, %v", score, err)
	}
}

func TestCatalogAdapterRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()
	catalog := NewCatalogAdapter(s, "test")

	events := []*core.Event{
		{ID: "evt-1", Name: "ETH Summit", Category: "conference", Popularity: 90, StartTime: time.Now()},
		{ID: "evt-2", Name: "DeFi Workshop", Category: "workshop", Popularity: 70, StartTime: time.Now()},
	}
	for _, ev := range events {
		if err := catalog.SaveEvent(ctx, ev); err != nil {
			t.Fatalf("SaveEvent: %v", err)
		}
	}

	listed, err := catalog.ListEvents(ctx, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed = %d, want 2", len(listed))
	}

	got, err := catalog.GetEvent(ctx, "evt-1")
	if err != nil || got.Name != "ETH Summit" {
		t.Fatalf("GetEvent = %+v, %v", got, err)
	}
	if _, err := catalog.GetEvent(ctx, "missing"); !core.IsNotFound(err) {
		t.Errorf("missing event err = %v, want NOT_FOUND", err)
	}

	hot, err := catalog.HotEvents(ctx, 1)
	if err != nil {
		t.Fatalf("HotEvents: %v", err)
	}
	if len(hot) != 1 || hot[0].ID != "evt-1" {
		t.Errorf("HotEvents = %+v, want [evt-1]", hot)
	}
}

func TestInteractionAdapterAppendsAndLists(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()
	adapter := NewInteractionAdapter(s, "test")

	for i, eventID := range []string{"evt-1", "evt-2", "evt-1"} {
		err := adapter.AppendInteraction(ctx, &core.Interaction{
			UserID:    "u1",
			Query:     "some query",
			EventID:   eventID,
			Success:   i%2 == 0,
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("AppendInteraction: %v", err)
		}
	}

	listed, err := adapter.ListInteractions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(listed) != 3 {
		t.Errorf("listed = %d, want 3", len(listed))
	}

	ids, err := adapter.InteractedEventIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("InteractedEventIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("interacted set = %v, want {evt-1, evt-2}", ids)
	}

	// 无记录用户：空集合而非错误
	empty, err := adapter.InteractedEventIDs(ctx, "nobody")
	if err != nil {
		t.Fatalf("empty user: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty user set = %v", empty)
	}
}

func TestCFAdapterAccumulates(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()
	cf := NewCFAdapter(s, "test")

	if err := cf.AddInteraction(ctx, "u1", "evt-1", 1); err != nil {
		t.Fatalf("AddInteraction: %v", err)
	}
	if err := cf.AddInteraction(ctx, "u2", "evt-1", 1); err != nil {
		t.Fatalf("AddInteraction: %v", err)
	}

	userItems, err := cf.GetUserItems(ctx, "u1")
	if err != nil || userItems["evt-1"] != 1 {
		t.Errorf("GetUserItems = %v, %v", userItems, err)
	}
	itemUsers, err := cf.GetItemUsers(ctx, "evt-1")
	if err != nil || len(itemUsers) != 2 {
		t.Errorf("GetItemUsers = %v, %v", itemUsers, err)
	}
	items, err := cf.GetAllItems(ctx)
	if err != nil || len(items) != 1 || items[0] != "evt-1" {
		t.Errorf("GetAllItems = %v, %v", items, err)
	}
}
