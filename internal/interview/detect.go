package interview

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/kalambet/elicit/internal/oracle"
	"github.com/kalambet/elicit/internal/storage"
)

// SimilarityThreshold is the minimum cosine similarity between a reply and a
// topic for the topic to count as affected when the oracle cannot say.
const SimilarityThreshold = 0.75

// Detector finds the topics a reply carries information for.
type Detector struct {
	oracle Oracle
	logger *slog.Logger

	mu         sync.Mutex
	embeddings map[string][]float32 // by topic content
}

func NewDetector(o Oracle, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{oracle: o, logger: logger, embeddings: make(map[string][]float32)}
}

// Affected returns the topics touched by the latest reply, current first.
// The current topic is always part of the result.
func (d *Detector) Affected(ctx context.Context, current storage.Topic, transcript Transcript, topics []storage.Topic) []storage.Topic {
	if d.oracle == nil {
		return []storage.Topic{current}
	}
	raw, ok := d.oracle.Call(ctx, affectedTopicsPrompt, affectedTopicsQuery(current, transcript, topics))
	if ok {
		var numbers []oracle.Flex
		if err := oracle.Decode(raw, &numbers); err == nil {
			return withCurrent(current, topics, d.resolveAll(numbers, topics))
		}
		d.logger.Warn("malformed affected topics, trying similarity", "raw", raw)
	}
	return withCurrent(current, topics, d.similar(ctx, transcript.LatestReply(), topics))
}

func (d *Detector) resolveAll(numbers []oracle.Flex, topics []storage.Topic) map[string]bool {
	res := newResolver(topics)
	hit := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		if number, ok := res.resolve(n.String()); ok {
			hit[number] = true
		}
	}
	return hit
}

func (d *Detector) similar(ctx context.Context, reply string, topics []storage.Topic) map[string]bool {
	hit := make(map[string]bool)
	if reply == "" {
		return hit
	}
	vec, ok := d.oracle.Embed(ctx, reply)
	if !ok {
		return hit
	}
	for _, t := range topics {
		tv, ok := d.topicEmbedding(ctx, t.Content)
		if !ok {
			return hit
		}
		if cosine(vec, tv) >= SimilarityThreshold {
			hit[t.Number] = true
		}
	}
	return hit
}

func (d *Detector) topicEmbedding(ctx context.Context, content string) ([]float32, bool) {
	d.mu.Lock()
	v, ok := d.embeddings[content]
	d.mu.Unlock()
	if ok {
		return v, true
	}
	v, ok = d.oracle.Embed(ctx, content)
	if !ok {
		return nil, false
	}
	d.mu.Lock()
	d.embeddings[content] = v
	d.mu.Unlock()
	return v, true
}

// withCurrent orders the hit topics as in topics, with current in front.
func withCurrent(current storage.Topic, topics []storage.Topic, hit map[string]bool) []storage.Topic {
	out := []storage.Topic{current}
	for _, t := range topics {
		if t.ID != current.ID && hit[t.Number] {
			out = append(out, t)
		}
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
