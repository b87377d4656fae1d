// Package search maintains an in-memory inverted index over note content,
// titles and tags, with term-frequency ranking and a small TTL result cache.
package search

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
)

const (
	// MinTermLength is the default shortest token that gets indexed.
	MinTermLength = 2

	titleBoost = 2.0
	tagBoost   = 1.5

	defaultCacheTTL     = 30 * time.Second
	defaultCacheEntries = 64
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "to": true, "was": true, "were": true,
	"will": true, "with": true,
}

// Document is one indexable note.
type Document struct {
	Path    string
	Title   string
	Tags    []string
	Content string
}

// Result is one search hit.
type Result struct {
	Path         string   `json:"path"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matchedTerms"`
}

// Stats describes the index's current shape.
type Stats struct {
	DocumentCount int `json:"documentCount"`
	TermCount     int `json:"termCount"`
	CacheSize     int `json:"cacheSize"`
}

// Option configures an Index.
type Option func(*Index)

// WithCacheTTL overrides the result cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(idx *Index) { idx.cacheTTL = ttl }
}

// WithCacheEntries overrides the result cache capacity.
func WithCacheEntries(n int) Option {
	return func(idx *Index) { idx.cacheMax = n }
}

// WithMinTermLength overrides the shortest token that gets indexed.
func WithMinTermLength(n int) Option {
	return func(idx *Index) { idx.minTermLength = n }
}

// withNow injects the clock, for TTL tests.
func withNow(now func() time.Time) Option {
	return func(idx *Index) { idx.now = now }
}

type cacheEntry struct {
	results []Result
	expires time.Time
}

// Index is the inverted index: term → path → frequency. Title and tag terms
// are tracked separately so matches there outrank body matches. Queries are
// answered from a FIFO result cache while fresh; any index mutation clears
// the cache wholesale.
type Index struct {
	mu          sync.RWMutex
	postings    map[string]map[string]int
	docTerms    map[string]map[string]int // reverse: path → term freqs
	titleTerms  map[string]map[string]bool
	tagTerms    map[string]map[string]bool
	dirty       map[string]bool
	deleted     map[string]bool
	needsUpdate bool

	minTermLength int

	cache      map[string]cacheEntry
	cacheOrder []string
	cacheTTL   time.Duration
	cacheMax   int
	now        func() time.Time
}

func NewIndex(opts ...Option) *Index {
	idx := &Index{
		postings:      make(map[string]map[string]int),
		docTerms:      make(map[string]map[string]int),
		titleTerms:    make(map[string]map[string]bool),
		tagTerms:      make(map[string]map[string]bool),
		dirty:         make(map[string]bool),
		deleted:       make(map[string]bool),
		needsUpdate:   true,
		minTermLength: MinTermLength,
		cache:         make(map[string]cacheEntry),
		cacheTTL:      defaultCacheTTL,
		cacheMax:      defaultCacheEntries,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// --- Indexing ---

// BuildIndex replaces the whole index with the given documents.
func (idx *Index) BuildIndex(docs []Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.postings = make(map[string]map[string]int)
	idx.docTerms = make(map[string]map[string]int)
	idx.titleTerms = make(map[string]map[string]bool)
	idx.tagTerms = make(map[string]map[string]bool)
	idx.dirty = make(map[string]bool)
	idx.deleted = make(map[string]bool)

	for _, doc := range docs {
		idx.addLocked(doc)
	}
	idx.needsUpdate = false
	idx.clearCacheLocked()
}

// UpdateIndex reindexes only the dirty documents, fetching each through fn.
// Documents fn cannot produce are removed, as are documents marked deleted.
func (idx *Index) UpdateIndex(fn func(path string) (Document, bool)) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for path := range idx.deleted {
		idx.removeLocked(path)
	}
	idx.deleted = make(map[string]bool)

	for path := range idx.dirty {
		idx.removeLocked(path)
		if doc, ok := fn(path); ok {
			idx.addLocked(doc)
		}
	}
	idx.dirty = make(map[string]bool)
	idx.needsUpdate = false
	idx.clearCacheLocked()
}

// MarkDirty queues a document for reindexing and drops cached results.
func (idx *Index) MarkDirty(path string) {
	idx.mu.Lock()
	idx.dirty[path] = true
	idx.needsUpdate = true
	idx.clearCacheLocked()
	idx.mu.Unlock()
}

// MarkDeleted queues a document for removal and drops cached results.
func (idx *Index) MarkDeleted(path string) {
	idx.mu.Lock()
	delete(idx.dirty, path)
	idx.deleted[path] = true
	idx.needsUpdate = true
	idx.clearCacheLocked()
	idx.mu.Unlock()
}

// NeedsUpdate reports whether the index is stale: true on a fresh index and
// after Clear/MarkDirty/MarkDeleted, false once BuildIndex or UpdateIndex
// has run.
func (idx *Index) NeedsUpdate() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.needsUpdate
}

// Clear empties the index and result cache and leaves the index stale, so
// the next NeedsUpdate-gated refresh rebuilds it.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.postings = make(map[string]map[string]int)
	idx.docTerms = make(map[string]map[string]int)
	idx.titleTerms = make(map[string]map[string]bool)
	idx.tagTerms = make(map[string]map[string]bool)
	idx.dirty = make(map[string]bool)
	idx.deleted = make(map[string]bool)
	idx.needsUpdate = true
	idx.clearCacheLocked()
}

// IndexStats returns the current document, term and cache counts.
func (idx *Index) IndexStats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		DocumentCount: len(idx.docTerms),
		TermCount:     len(idx.postings),
		CacheSize:     len(idx.cache),
	}
}

func (idx *Index) addLocked(doc Document) {
	freqs := make(map[string]int)
	for _, term := range idx.tokenize(doc.Content) {
		freqs[term]++
	}

	titles := make(map[string]bool)
	for _, term := range idx.tokenize(doc.Title) {
		titles[term] = true
		freqs[term]++
	}

	tags := make(map[string]bool)
	for _, tag := range doc.Tags {
		for _, term := range idx.tokenize(tag) {
			tags[term] = true
			freqs[term]++
		}
	}

	if len(freqs) == 0 {
		// Keep the document visible in stats even when nothing tokenized.
		idx.docTerms[doc.Path] = freqs
		return
	}

	for term, n := range freqs {
		if idx.postings[term] == nil {
			idx.postings[term] = make(map[string]int)
		}
		idx.postings[term][doc.Path] = n
	}
	idx.docTerms[doc.Path] = freqs
	if len(titles) > 0 {
		idx.titleTerms[doc.Path] = titles
	}
	if len(tags) > 0 {
		idx.tagTerms[doc.Path] = tags
	}
}

func (idx *Index) removeLocked(path string) {
	for term := range idx.docTerms[path] {
		delete(idx.postings[term], path)
		if len(idx.postings[term]) == 0 {
			delete(idx.postings, term)
		}
	}
	delete(idx.docTerms, path)
	delete(idx.titleTerms, path)
	delete(idx.tagTerms, path)
}

// --- Querying ---

// Search ranks documents matching the query by term frequency, with boosts
// for title and tag matches. Results come back score-descending, ties broken
// by path ascending. Identical queries within the cache TTL are served from
// the result cache without re-ranking.
func (idx *Index) Search(query string, limit int) []Result {
	terms := idx.tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	idx.mu.Lock()
	if entry, ok := idx.cache[query]; ok && idx.now().Before(entry.expires) {
		results := entry.results
		idx.mu.Unlock()
		return capResults(results, limit)
	}

	results := idx.rankLocked(terms)
	idx.storeCacheLocked(query, results)
	idx.mu.Unlock()

	return capResults(results, limit)
}

func (idx *Index) rankLocked(terms []string) []Result {
	scores := make(map[string]float64)
	matched := make(map[string]map[string]bool)

	for _, term := range terms {
		for path, freq := range idx.postings[term] {
			score := float64(freq)
			if idx.titleTerms[path][term] {
				score += titleBoost
			}
			if idx.tagTerms[path][term] {
				score += tagBoost
			}
			scores[path] += score
			if matched[path] == nil {
				matched[path] = make(map[string]bool)
			}
			matched[path][term] = true
		}
	}

	results := make([]Result, 0, len(scores))
	for path, score := range scores {
		var hit []string
		for term := range matched[path] {
			hit = append(hit, term)
		}
		sort.Strings(hit)
		results = append(results, Result{Path: path, Score: score, MatchedTerms: hit})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	return results
}

func capResults(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		return nil
	}
	return results
}

// --- Result cache ---

// storeCacheLocked inserts under FIFO eviction: refreshing an existing key
// does not grow the cache or change its eviction position.
func (idx *Index) storeCacheLocked(query string, results []Result) {
	if idx.cacheMax <= 0 {
		return
	}
	if _, exists := idx.cache[query]; !exists {
		if len(idx.cacheOrder) >= idx.cacheMax {
			oldest := idx.cacheOrder[0]
			idx.cacheOrder = idx.cacheOrder[1:]
			delete(idx.cache, oldest)
		}
		idx.cacheOrder = append(idx.cacheOrder, query)
	}
	idx.cache[query] = cacheEntry{results: results, expires: idx.now().Add(idx.cacheTTL)}
}

func (idx *Index) clearCacheLocked() {
	idx.cache = make(map[string]cacheEntry)
	idx.cacheOrder = nil
}

// --- Tokenization ---

// Tokenize lowercases and splits on non-alphanumeric runes, dropping
// stopwords and tokens shorter than MinTermLength.
func Tokenize(text string) []string {
	return tokenize(text, MinTermLength)
}

// tokenize is Tokenize with the index's configured minimum term length.
func (idx *Index) tokenize(text string) []string {
	return tokenize(text, idx.minTermLength)
}

func tokenize(text string, minLen int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < minLen || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
