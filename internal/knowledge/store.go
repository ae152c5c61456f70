package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/philippgille/chromem-go"
)

// ErrEmptyQuery indicates a search with no query text.
var ErrEmptyQuery = errors.New("empty query")

// Document is one indexable fragment of campus knowledge.
type Document struct {
	ID       string
	Topic    string
	Source   string
	Headings string
	Content  string
}

// Result is one retrieval hit.
type Result struct {
	Topic      string
	Source     string
	Headings   string
	Content    string
	Similarity float32
}

// Store is a persistent on-disk vector index. Each topic maps to its own
// collection; queries fan out across all of them and merge by similarity.
type Store struct {
	db     *chromem.DB
	embed  chromem.EmbeddingFunc
	logger *slog.Logger
}

// Open opens (or creates) the index at path.
func Open(path string, embed chromem.EmbeddingFunc, logger *slog.Logger) (*Store, error) {
	if embed == nil {
		return nil, ErrNoEmbedder
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector db: %w", err)
	}
	return &Store{db: db, embed: embed, logger: logger}, nil
}

// Add indexes docs into their topic collections.
func (s *Store) Add(ctx context.Context, docs []Document) error {
	byTopic := make(map[string][]chromem.Document)
	for _, d := range docs {
		byTopic[d.Topic] = append(byTopic[d.Topic], chromem.Document{
			ID: d.ID,
			Metadata: map[string]string{
				"topic":    d.Topic,
				"source":   d.Source,
				"headings": d.Headings,
			},
			Content: d.Content,
		})
	}

	for topic, batch := range byTopic {
		col, err := s.db.GetOrCreateCollection(collectionName(topic), map[string]string{"topic": topic}, s.embed)
		if err != nil {
			return fmt.Errorf("creating collection for topic %q: %w", topic, err)
		}
		if err := col.AddDocuments(ctx, batch, 2); err != nil {
			return fmt.Errorf("indexing topic %q: %w", topic, err)
		}
		s.logger.Info("indexed topic", "topic", topic, "documents", len(batch))
	}
	return nil
}

// Search queries every topic collection and returns the best topK hits
// across all of them, most similar first.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = 4
	}

	var all []Result
	for _, col := range s.db.ListCollections() {
		n := topK
		// The library rejects a request for more results than the
		// collection holds.
		if count := col.Count(); count < n {
			n = count
		}
		if n == 0 {
			continue
		}
		hits, err := col.Query(ctx, query, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("querying collection: %w", err)
		}
		for _, h := range hits {
			all = append(all, Result{
				Topic:      h.Metadata["topic"],
				Source:     h.Metadata["source"],
				Headings:   h.Metadata["headings"],
				Content:    h.Content,
				Similarity: h.Similarity,
			})
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Similarity > all[j].Similarity })
	if len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}

// Topics lists the indexed topics in their original, human-readable form.
func (s *Store) Topics() []string {
	cols := s.db.ListCollections()
	topics := make([]string, 0, len(cols))
	for name := range cols {
		topics = append(topics, topicFromName(name))
	}
	sort.Strings(topics)
	return topics
}

// Empty reports whether the index holds no documents.
func (s *Store) Empty() bool {
	for _, col := range s.db.ListCollections() {
		if col.Count() > 0 {
			return false
		}
	}
	return true
}

// Escapes are fixed-width so names decode back to topics unambiguously.
const escapeWidth = 6

// collectionName derives a stable collection name from a topic. Chromem
// restricts names to [a-zA-Z0-9._-] with 3 to 63 characters, so anything
// else (CJK headings included) is hex-escaped; underscores always introduce
// an escape and are escaped themselves. Topics too short to pass the length
// check are escaped wholesale.
func collectionName(topic string) string {
	name := encodeTopic(topic, false)
	if len(name) < 3 {
		name = encodeTopic(topic, true)
	}
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

func encodeTopic(topic string, escapeAll bool) string {
	var b strings.Builder
	for _, r := range topic {
		plain := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' || r == '.' || r == '-'
		if plain && !escapeAll {
			b.WriteRune(r)
		} else {
			fmt.Fprintf(&b, "_%06x", r)
		}
	}
	return b.String()
}

// topicFromName reverses collectionName. Names it did not produce, including
// ones truncated at the length cap, come back unchanged.
func topicFromName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); {
		if name[i] != '_' {
			b.WriteByte(name[i])
			i++
			continue
		}
		end := i + 1 + escapeWidth
		if end > len(name) {
			return name
		}
		v, err := strconv.ParseUint(name[i+1:end], 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return name
		}
		b.WriteRune(rune(v))
		i = end
	}
	return b.String()
}
