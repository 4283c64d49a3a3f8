package transcript

import (
	"testing"
	"time"

	"github.com/vango-go/mensetsu/pkg/core"
)

func TestAppendPatchMarkDone(t *testing.T) {
	s := NewStore()
	if err := s.AppendMessage("item_1", RoleAssistant, ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.PatchText("item_1", "こんにち"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if err := s.PatchText("item_1", "は"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if err := s.MarkDone("item_1"); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	item, ok := s.Get("item_1")
	if !ok {
		t.Fatalf("item missing")
	}
	if item.Title != "こんにちは" {
		t.Fatalf("title=%q, want concatenation of deltas", item.Title)
	}
	if item.Status != StatusDone {
		t.Fatalf("status=%q, want DONE", item.Status)
	}
}

func TestAppendDuplicateIDDoesNotMutate(t *testing.T) {
	s := NewStore()
	if err := s.AppendMessage("item_1", RoleUser, "first"); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := s.AppendMessage("item_1", RoleUser, "second")
	if !core.IsType(err, core.ErrDuplicateID) {
		t.Fatalf("err=%v, want duplicate_id_error", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len=%d, want 1", s.Len())
	}
	item, _ := s.Get("item_1")
	if item.Title != "first" {
		t.Fatalf("title=%q, duplicate append must not mutate", item.Title)
	}
}

func TestPatchTextMissingItem(t *testing.T) {
	s := NewStore()
	err := s.PatchText("nope", "x")
	if !core.IsType(err, core.ErrNotFound) {
		t.Fatalf("err=%v, want not_found_error", err)
	}
}

func TestPatchTextAfterDone(t *testing.T) {
	s := NewStore()
	if err := s.AppendMessage("item_1", RoleAssistant, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.MarkDone("item_1"); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	// Late duplicate empty delta is a guard, not an error.
	if err := s.PatchText("item_1", ""); err != nil {
		t.Fatalf("empty delta on done item: %v", err)
	}
	if err := s.PatchText("item_1", "more"); err == nil {
		t.Fatalf("expected rejection of non-empty delta on done item")
	}
	item, _ := s.Get("item_1")
	if item.Title != "hello" {
		t.Fatalf("title=%q, done item must not mutate", item.Title)
	}
}

func TestMarkDoneIdempotent(t *testing.T) {
	s := NewStore()
	if err := s.AppendMessage("item_1", RoleAssistant, "x"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.MarkDone("item_1"); err != nil {
		t.Fatalf("first mark done: %v", err)
	}
	if err := s.MarkDone("item_1"); err != nil {
		t.Fatalf("second mark done should be a no-op: %v", err)
	}
}

func TestSetHiddenOnDoneItem(t *testing.T) {
	s := NewStore()
	if err := s.AppendMessage("item_1", RoleAssistant, "x"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.MarkDone("item_1"); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if err := s.SetHidden("item_1", true); err != nil {
		t.Fatalf("set hidden: %v", err)
	}
	item, _ := s.Get("item_1")
	if !item.Hidden {
		t.Fatalf("hidden flag must be togglable after DONE")
	}
}

func TestFindLast(t *testing.T) {
	s := NewStore()
	_ = s.AppendMessage("u1", RoleUser, "question")
	_ = s.AppendMessage("a1", RoleAssistant, "answer one")
	_ = s.AppendMessage("a2", RoleAssistant, "answer two")

	item, ok := s.FindLast(func(it Item) bool { return it.Role == RoleAssistant })
	if !ok {
		t.Fatalf("expected a match")
	}
	if item.ItemID != "a2" {
		t.Fatalf("itemID=%q, want most recent assistant item", item.ItemID)
	}

	_, ok = s.FindLast(func(it Item) bool { return it.Role == RoleSystem })
	if ok {
		t.Fatalf("expected no match for system role")
	}
}

func TestObserversNotifiedSynchronously(t *testing.T) {
	s := NewStore(WithNow(func() time.Time { return time.Unix(100, 0) }))
	var seen []string
	s.Subscribe(func(item Item) {
		seen = append(seen, item.ItemID+":"+string(item.Status))
	})

	_ = s.AppendMessage("item_1", RoleAssistant, "")
	_ = s.PatchText("item_1", "hi")
	_ = s.MarkDone("item_1")

	want := []string{"item_1:IN_PROGRESS", "item_1:IN_PROGRESS", "item_1:DONE"}
	if len(seen) != len(want) {
		t.Fatalf("got %d notifications, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("notification %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestBreadcrumbDefaults(t *testing.T) {
	s := NewStore()
	if err := s.AppendBreadcrumb("Agent: questions", true, map[string]any{"from": "introduction"}); err != nil {
		t.Fatalf("append breadcrumb: %v", err)
	}
	item, ok := s.FindLast(func(it Item) bool { return it.Kind == KindBreadcrumb })
	if !ok {
		t.Fatalf("breadcrumb missing")
	}
	if item.Status != StatusDone || !item.Hidden {
		t.Fatalf("breadcrumb status=%q hidden=%v, want DONE hidden", item.Status, item.Hidden)
	}
	if item.CreatedAt.IsZero() {
		t.Fatalf("created timestamp not set")
	}
}
