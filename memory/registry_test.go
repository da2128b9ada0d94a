package memory_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
)

func newTestRegistry(t *testing.T, dir string, maxSize int) *memory.Registry {
	t.Helper()
	reg, err := memory.NewRegistry(mock.NewWithDimensions(16), &memory.Config{
		DataDir: dir,
		MaxSize: maxSize,
		SearchK: 2,
		Index:   memory.IndexFlat,
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return reg
}

func TestRegistry_GetOrCreateReturnsSameInstance(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir(), 10)

	a, err := reg.GetOrCreate("user1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	b, err := reg.GetOrCreate("user1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if a != b {
		t.Error("second access returned a different instance")
	}

	other, _ := reg.GetOrCreate("user2")
	if other == a {
		t.Error("different users share a store")
	}
}

func TestRegistry_ConcurrentAccessSingleInstance(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir(), 10)

	const workers = 16
	stores := make([]*memory.Store, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reg.GetOrCreate("shared")
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if stores[i] != stores[0] {
			t.Fatalf("worker %d got a different instance", i)
		}
	}
}

func TestRegistry_ConcurrentAddsSameUser(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, t.TempDir(), 30)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := reg.AddFragment(ctx, "busy", fmt.Sprintf("fragment %d", i)); err != nil {
				t.Errorf("AddFragment failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	store, _ := reg.GetOrCreate("busy")
	if store.Len() != 30 {
		t.Errorf("Len = %d, want 30", store.Len())
	}

	// Every surviving text still finds itself first.
	for _, text := range store.Texts() {
		results, err := reg.SearchContext(ctx, "busy", text, 1)
		if err != nil {
			t.Fatalf("SearchContext failed: %v", err)
		}
		if len(results) != 1 || results[0] != text {
			t.Errorf("SearchContext(%q) = %v", text, results)
		}
	}
}

func TestRegistry_InvalidUserIDs(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir(), 10)

	for _, id := range []string{"", ".", "..", "../etc", "a/b", `a\b`, "nul\x00"} {
		if _, err := reg.GetOrCreate(id); !errors.Is(err, memory.ErrInvalidUserID) {
			t.Errorf("GetOrCreate(%q) = %v, want ErrInvalidUserID", id, err)
		}
	}
}

func TestRegistry_PathFor(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(t, dir, 10)

	path, err := reg.PathFor("123456")
	if err != nil {
		t.Fatalf("PathFor failed: %v", err)
	}
	if want := filepath.Join(dir, "123456"); path != want {
		t.Errorf("PathFor = %q, want %q", path, want)
	}
}

func TestRegistry_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := newTestRegistry(t, dir, 10)
	for _, text := range []string{"the cat is grey", "rent is due on the 5th", "call mom"} {
		if err := first.AddFragment(ctx, "77", text); err != nil {
			t.Fatalf("AddFragment failed: %v", err)
		}
	}
	want, err := first.SearchContext(ctx, "77", "cat", 2)
	if err != nil {
		t.Fatalf("SearchContext failed: %v", err)
	}
	if err := first.Persist("77"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	second := newTestRegistry(t, dir, 10)
	store, err := second.GetOrCreate("77")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if store.Len() != 3 {
		t.Fatalf("reloaded Len = %d, want 3", store.Len())
	}
	got, err := second.SearchContext(ctx, "77", "cat", 2)
	if err != nil {
		t.Fatalf("SearchContext failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded search = %v, want %v", got, want)
	}
}

func TestRegistry_SearchContextDefaultK(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, t.TempDir(), 10)
	for i := 0; i < 5; i++ {
		if err := reg.AddFragment(ctx, "u", fmt.Sprintf("note %d", i)); err != nil {
			t.Fatalf("AddFragment failed: %v", err)
		}
	}

	results, err := reg.SearchContext(ctx, "u", "note", 0)
	if err != nil {
		t.Fatalf("SearchContext failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want config SearchK 2", len(results))
	}
}

func TestRegistry_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, t.TempDir(), 10)

	if err := reg.AddFragment(ctx, "alice", "alice secret"); err != nil {
		t.Fatalf("AddFragment failed: %v", err)
	}
	results, err := reg.SearchContext(ctx, "bob", "alice secret", 3)
	if err != nil {
		t.Fatalf("SearchContext failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("bob sees %v", results)
	}
}

func TestRegistry_PersistUnknownUserIsNoop(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(t, dir, 10)

	if err := reg.Persist("ghost"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ghost"+memory.TextsSuffix)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Persist wrote files for an unloaded user: %v", err)
	}
}

func TestRegistry_PersistAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reg := newTestRegistry(t, dir, 10)

	for _, user := range []string{"a", "b", "c"} {
		if err := reg.AddFragment(ctx, user, "hello from "+user); err != nil {
			t.Fatalf("AddFragment failed: %v", err)
		}
	}
	if got := reg.Users(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Users = %v", got)
	}
	if err := reg.PersistAll(); err != nil {
		t.Fatalf("PersistAll failed: %v", err)
	}
	for _, user := range []string{"a", "b", "c"} {
		for _, suffix := range []string{memory.IndexSuffix, memory.TextsSuffix} {
			if _, err := os.Stat(filepath.Join(dir, user+suffix)); err != nil {
				t.Errorf("missing %s%s: %v", user, suffix, err)
			}
		}
	}
}

func TestRegistry_EvictReloadsFromDisk(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, t.TempDir(), 10)

	if err := reg.AddFragment(ctx, "u", "remember me"); err != nil {
		t.Fatalf("AddFragment failed: %v", err)
	}
	before, _ := reg.GetOrCreate("u")

	if err := reg.Evict("u"); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if len(reg.Users()) != 0 {
		t.Errorf("Users after evict = %v", reg.Users())
	}

	after, err := reg.GetOrCreate("u")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if after == before {
		t.Error("evicted instance was reused")
	}
	if !reflect.DeepEqual(after.Texts(), []string{"remember me"}) {
		t.Errorf("reloaded Texts = %v", after.Texts())
	}
}

func TestRegistry_EvictIdle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reg := newTestRegistry(t, dir, 10)

	if err := reg.AddFragment(ctx, "idle", "old news"); err != nil {
		t.Fatalf("AddFragment failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := reg.AddFragment(ctx, "active", "fresh"); err != nil {
		t.Fatalf("AddFragment failed: %v", err)
	}

	n, err := reg.EvictIdle(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("EvictIdle failed: %v", err)
	}
	if n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if got := reg.Users(); !reflect.DeepEqual(got, []string{"active"}) {
		t.Errorf("Users = %v, want [active]", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "idle"+memory.TextsSuffix)); err != nil {
		t.Errorf("idle store not saved on eviction: %v", err)
	}

	results, err := reg.SearchContext(ctx, "idle", "old news", 1)
	if err != nil {
		t.Fatalf("SearchContext failed: %v", err)
	}
	if !reflect.DeepEqual(results, []string{"old news"}) {
		t.Errorf("after reload = %v", results)
	}
}

func TestRegistry_FailedLoadIsNotCached(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(t, dir, 10)

	indexPath := filepath.Join(dir, "broken"+memory.IndexSuffix)
	textsPath := filepath.Join(dir, "broken"+memory.TextsSuffix)
	os.WriteFile(indexPath, []byte("junk"), 0o644)
	os.WriteFile(textsPath, []byte("[]"), 0o644)

	if _, err := reg.GetOrCreate("broken"); !errors.Is(err, memory.ErrPersistenceFailure) {
		t.Fatalf("GetOrCreate error = %v, want ErrPersistenceFailure", err)
	}

	os.Remove(indexPath)
	store, err := reg.GetOrCreate("broken")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}

func TestNewRegistry_RejectsBadConfig(t *testing.T) {
	_, err := memory.NewRegistry(mock.New(), &memory.Config{DataDir: "x", MaxSize: 0, SearchK: 3})
	if err == nil {
		t.Error("expected error for zero max size")
	}
	_, err = memory.NewRegistry(mock.New(), &memory.Config{DataDir: "x", MaxSize: 3, SearchK: 3, Index: "hnsw"})
	if err == nil {
		t.Error("expected error for unknown index")
	}
}
