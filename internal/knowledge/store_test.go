package knowledge

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/zk-jackie/campusqa/internal/log"
	"github.com/zk-jackie/campusqa/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	g := testutil.NewGenkit(t)
	embedder := testutil.NewMockEmbedder(16).RegisterEmbedder(g)

	embed, err := EmbeddingFunc(embedder)
	if err != nil {
		t.Fatalf("EmbeddingFunc: %v", err)
	}
	store, err := Open(filepath.Join(t.TempDir(), "vectordb"), embed, log.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func testDocs() []Document {
	return []Document{
		{ID: "1", Topic: "Library", Source: "library.md", Headings: "Library > Hours", Content: "The library opens at 8am."},
		{ID: "2", Topic: "Library", Source: "library.md", Headings: "Library > Borrowing", Content: "Students may borrow ten books."},
		{ID: "3", Topic: "Clinic", Source: "clinic.md", Headings: "Clinic", Content: "The clinic closes on holidays."},
	}
}

func TestAddAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, testDocs()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if store.Empty() {
		t.Fatal("store reports empty after Add")
	}
	if got := len(store.Topics()); got != 2 {
		t.Errorf("Topics = %v, want 2 collections", store.Topics())
	}

	// Identical text embeds identically, so the exact document comes
	// back first.
	results, err := store.Search(ctx, "The library opens at 8am.", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search returned no results")
	}
	if results[0].Source != "library.md" {
		t.Errorf("top result source = %q, want library.md", results[0].Source)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not ordered by similarity at %d", i)
		}
	}
}

func TestSearchClampsTopK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, testDocs()); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// topK above the collection sizes must not fail.
	results, err := store.Search(ctx, "books", 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Search returned %d results, want all 3", len(results))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Search(context.Background(), "  ", 4); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Search error = %v, want ErrEmptyQuery", err)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), "anything", 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search on empty store returned %d results", len(results))
	}
	if !store.Empty() {
		t.Error("fresh store should report empty")
	}
}

func TestEmbeddingFuncNilEmbedder(t *testing.T) {
	if _, err := EmbeddingFunc(nil); !errors.Is(err, ErrNoEmbedder) {
		t.Errorf("EmbeddingFunc error = %v, want ErrNoEmbedder", err)
	}
}

// Topics must come back as they were indexed, not as escaped collection
// names.
func TestTopicsAreHumanReadable(t *testing.T) {
	store := newTestStore(t)
	docs := []Document{
		{ID: "1", Topic: "图书馆指南", Source: "library.md", Content: "图书馆早上八点开门。"},
		{ID: "2", Topic: "Clinic", Source: "clinic.md", Content: "The clinic closes on holidays."},
	}
	if err := store.Add(context.Background(), docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got := store.Topics()
	want := []string{"Clinic", "图书馆指南"}
	if len(got) != len(want) {
		t.Fatalf("Topics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Topics[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCollectionNameRoundTrip(t *testing.T) {
	for _, topic := range []string{"Library", "图书馆指南", "Wi-Fi 上网指南", "A", "a_b"} {
		if got := topicFromName(collectionName(topic)); got != topic {
			t.Errorf("topicFromName(collectionName(%q)) = %q", topic, got)
		}
	}
}

func TestCollectionNameSanitizesTopics(t *testing.T) {
	a := collectionName("图书馆指南")
	b := collectionName("医务室指南")
	if a == b {
		t.Error("distinct topics must map to distinct collection names")
	}
	for _, r := range a {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-'
		if !ok {
			t.Errorf("collection name %q contains invalid rune %q", a, r)
		}
	}
}
