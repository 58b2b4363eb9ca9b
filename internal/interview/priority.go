package interview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/kalambet/elicit/internal/cache"
	"github.com/kalambet/elicit/internal/oracle"
	"github.com/kalambet/elicit/internal/storage"
)

// Edge states that Source depends on Target. Both sides are loose topic
// references as produced by the oracle.
type Edge struct {
	Source oracle.Flex `json:"source"`
	Target oracle.Flex `json:"target"`
}

// Builder ranks the topics of a project for sequential advancement.
type Builder struct {
	store  *storage.Store
	oracle Oracle
	cache  cache.PriorityCache
	logger *slog.Logger
}

func NewBuilder(store *storage.Store, o Oracle, c cache.PriorityCache, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, oracle: o, cache: c, logger: logger}
}

type snapshotEntry struct {
	Number  string              `json:"number"`
	Content string              `json:"content"`
	Section string              `json:"section"`
	Status  storage.TopicStatus `json:"status"`
}

// Digest hashes the canonical snapshot of topics. Any change to the topic
// set, a topic's content, section or status yields a different digest.
func Digest(topics []storage.Topic) string {
	snap := make([]snapshotEntry, 0, len(topics))
	for _, t := range topics {
		snap = append(snap, snapshotEntry{Number: t.Number, Content: t.Content, Section: t.SectionNumber, Status: t.Status})
	}
	sort.Slice(snap, func(i, j int) bool { return compareNumbers(snap[i].Number, snap[j].Number) < 0 })
	data, _ := json.Marshal(snap)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Build returns the ranking of the project's topics, reusing the cached one
// while the topic snapshot is unchanged.
func (b *Builder) Build(ctx context.Context, projectID int64) ([]storage.PriorityEntry, error) {
	topics, err := b.store.ListTopics(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	digest := Digest(topics)

	if b.cache != nil {
		entry, ok, err := b.cache.Get(ctx, projectID)
		if err != nil {
			b.logger.Warn("priority cache read failed", "project", projectID, "error", err)
		} else if ok && entry.Digest == digest {
			return entry.Ranking, nil
		}
	}

	ranking := Rank(topics, b.dependencies(ctx, topics))

	if b.cache != nil {
		if err := b.cache.Put(ctx, projectID, cache.Entry{Digest: digest, Ranking: ranking}); err != nil {
			b.logger.Warn("priority cache write failed", "project", projectID, "error", err)
		}
	}
	if err := b.store.SetPrioritySequence(ctx, projectID, ranking); err != nil {
		return nil, fmt.Errorf("persisting ranking: %w", err)
	}
	b.logger.Debug("priority rebuilt", "project", projectID, "topics", len(ranking), "digest", digest[:12])
	return ranking, nil
}

// Invalidate drops the cached ranking of a project. Cache failures are
// logged, never returned.
func (b *Builder) Invalidate(ctx context.Context, projectID int64) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Invalidate(ctx, projectID); err != nil {
		b.logger.Warn("priority cache invalidation failed", "project", projectID, "error", err)
	}
}

// dependencies asks the oracle for the dependency graph. Failures yield no edges.
func (b *Builder) dependencies(ctx context.Context, topics []storage.Topic) []Edge {
	if b.oracle == nil || len(topics) == 0 {
		return nil
	}
	raw, ok := b.oracle.Call(ctx, dependencyPrompt, dependencyQuery(topics))
	if !ok {
		b.logger.Warn("dependency graph unavailable, ranking by section order")
		return nil
	}
	var edges []Edge
	if err := oracle.Decode(raw, &edges); err != nil {
		b.logger.Warn("malformed dependency graph, ranking by section order", "error", err, "raw", raw)
		return nil
	}
	return edges
}

// Rank scores topics by dependency freedom and section order and sorts them
// by descending core score. Topics with equal scores keep their order in topics.
func Rank(topics []storage.Topic, edges []Edge) []storage.PriorityEntry {
	if len(topics) == 0 {
		return []storage.PriorityEntry{}
	}
	res := newResolver(topics)

	indegree := make(map[string]int, len(topics))
	seen := make(map[[2]string]bool)
	for _, e := range edges {
		dst, ok := res.resolve(e.Target.String())
		if !ok {
			continue
		}
		src, ok := res.resolve(e.Source.String())
		if !ok {
			src = e.Source.String()
		}
		if src == dst {
			continue
		}
		key := [2]string{src, dst}
		if seen[key] {
			continue
		}
		seen[key] = true
		indegree[dst]++
	}
	maxIn := 0
	for _, n := range indegree {
		maxIn = max(maxIn, n)
	}

	var sections []string
	for _, t := range topics {
		if !slices.Contains(sections, t.SectionNumber) {
			sections = append(sections, t.SectionNumber)
		}
	}
	slices.SortFunc(sections, compareNumbers)
	position := make(map[string]int, len(sections))
	for i, s := range sections {
		position[s] = i + 1
	}
	total := len(sections)

	ranking := make([]storage.PriorityEntry, 0, len(topics))
	for _, t := range topics {
		fDep := 1.0
		if maxIn > 0 {
			fDep = 1 - float64(indegree[t.Number])/float64(maxIn)
		}
		fSec := 1.0
		if total > 1 {
			fSec = float64(total-position[t.SectionNumber]) / float64(total-1)
		}
		ranking = append(ranking, storage.PriorityEntry{
			TopicNumber: t.Number,
			Core:        0.5*fDep + 0.5*fSec,
			Status:      t.Status,
		})
	}
	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Core > ranking[j].Core })
	return ranking
}
