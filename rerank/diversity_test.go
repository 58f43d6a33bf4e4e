package rerank

import (
	"context"
	"testing"

	"github.com/evrec/evrec/core"
)

func item(id, category string) *core.Item {
	it := core.NewItem(id)
	it.Category = category
	return it
}

func TestDiversityInterleavesCategories(t *testing.T) {
	items := []*core.Item{
		item("a1", "conference"),
		item("a2", "conference"),
		item("a3", "conference"),
		item("b1", "party"),
		item("b2", "party"),
	}

	d := &Diversity{Factor: 0.3}
	out, err := d.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	// 集合不变
	if len(out) != len(items) {
		t.Fatalf("length changed: %d != %d", len(out), len(items))
	}
	seen := map[string]bool{}
	for _, it := range out {
		seen[it.ID] = true
	}
	for _, it := range items {
		if !seen[it.ID] {
			t.Errorf("item %s dropped", it.ID)
		}
	}

	// 头部交错：前两位不应是同一类目
	if out[0].Category == out[1].Category {
		t.Errorf("head not interleaved: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestDiversityNoopOnSmallLists(t *testing.T) {
	items := []*core.Item{item("a1", "x"), item("a2", "x"), item("a3", "x")}
	d := &Diversity{Factor: 0.3}
	out, err := d.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for i := range items {
		if out[i] != items[i] {
			t.Fatal("small list reordered")
		}
	}
}

func TestDiversityDisabled(t *testing.T) {
	items := []*core.Item{
		item("a1", "x"), item("a2", "x"), item("b1", "y"), item("b2", "y"),
	}
	d := &Diversity{Factor: 0}
	out, _ := d.Process(context.Background(), nil, items)
	for i := range items {
		if out[i] != items[i] {
			t.Fatal("disabled diversity must not reorder")
		}
	}
}

func TestTopNTruncates(t *testing.T) {
	items := []*core.Item{item("a", "x"), item("b", "x"), item("c", "x")}
	n := &TopN{N: 2}
	out, err := n.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("unexpected truncation: %+v", out)
	}
}
