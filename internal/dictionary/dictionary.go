package dictionary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Dictionary caches store entries and applies them as a text normalizer.
type Dictionary struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
	pattern *regexp.Regexp
}

// Load reads every entry from store into a new Dictionary.
func Load(ctx context.Context, store Store, logger *slog.Logger) (*Dictionary, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	d := &Dictionary{
		store:   store,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload replaces the cache with the store's current contents.
func (d *Dictionary) Reload(ctx context.Context) error {
	entries, err := d.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load dictionary: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]Entry, len(entries))
	for _, entry := range entries {
		d.entries[entry.Keyword] = entry
	}
	d.rebuildLocked()
	return nil
}

// Normalize replaces every keyword occurrence, longest keyword first and
// ignoring case, in a single pass so replacements are never rewritten again.
func (d *Dictionary) Normalize(text string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.pattern == nil || text == "" {
		return text
	}
	return d.pattern.ReplaceAllStringFunc(text, func(found string) string {
		if entry, ok := d.entries[strings.ToLower(found)]; ok {
			return entry.Replacement
		}
		return found
	})
}

// Learn stores or updates a substitution.
func (d *Dictionary) Learn(ctx context.Context, keyword, replacement string, kind Kind) (Entry, error) {
	key := normalizeKeyword(keyword)
	replacement = strings.TrimSpace(replacement)
	if key == "" {
		return Entry{}, fmt.Errorf("dictionary keyword cannot be empty")
	}
	if replacement == "" {
		return Entry{}, fmt.Errorf("dictionary replacement for %q cannot be empty", key)
	}
	if kind == "" {
		kind = KindCorrection
	}

	now := d.now()
	d.mu.RLock()
	entry, exists := d.entries[key]
	d.mu.RUnlock()
	if !exists {
		entry = Entry{Keyword: key, CreatedAt: now}
	}
	entry.Replacement = replacement
	entry.Kind = kind
	entry.UpdatedAt = now

	if err := d.store.Upsert(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("save dictionary entry %q: %w", key, err)
	}

	d.mu.Lock()
	d.entries[key] = entry
	d.rebuildLocked()
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Debug("dictionary entry learned", "keyword", key, "type", string(kind))
	}
	return entry, nil
}

// Forget removes a substitution.
func (d *Dictionary) Forget(ctx context.Context, keyword string) error {
	key := normalizeKeyword(keyword)
	if err := d.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete dictionary entry %q: %w", key, err)
	}

	d.mu.Lock()
	delete(d.entries, key)
	d.rebuildLocked()
	d.mu.Unlock()
	return nil
}

// IncrementUsage records that a substitution was applied.
func (d *Dictionary) IncrementUsage(ctx context.Context, keyword string) error {
	key := normalizeKeyword(keyword)
	now := d.now()
	if err := d.store.IncrementUsage(ctx, key, now); err != nil {
		return fmt.Errorf("increment dictionary usage %q: %w", key, err)
	}

	d.mu.Lock()
	if entry, ok := d.entries[key]; ok {
		entry.UsageCount++
		entry.UpdatedAt = now
		d.entries[key] = entry
	}
	d.mu.Unlock()
	return nil
}

// FindMatches returns entries whose keyword appears in text, longest first.
func (d *Dictionary) FindMatches(text string) []Entry {
	lower := strings.ToLower(text)

	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Entry
	for key, entry := range d.entries {
		if strings.Contains(lower, key) {
			out = append(out, entry)
		}
	}
	sortLongestFirst(out)
	return out
}

// Entries returns all entries ordered by keyword.
func (d *Dictionary) Entries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, 0, len(d.entries))
	for _, entry := range d.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Keyword < out[j].Keyword })
	return out
}

// Len reports the number of entries.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

type seedFile struct {
	Entries []Entry `yaml:"entries"`
}

// Import learns every entry in a YAML seed document of the form
// `entries: [{keyword, replacement, type}]` and returns how many were stored.
func (d *Dictionary) Import(ctx context.Context, r io.Reader) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read dictionary seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("parse dictionary seed: %w", err)
	}

	count := 0
	for i, entry := range seed.Entries {
		kind, err := ParseKind(string(entry.Kind))
		if err != nil {
			return count, fmt.Errorf("seed entry %d: %w", i+1, err)
		}
		if _, err := d.Learn(ctx, entry.Keyword, entry.Replacement, kind); err != nil {
			return count, fmt.Errorf("seed entry %d: %w", i+1, err)
		}
		count++
	}
	return count, nil
}

// Close releases the backing store.
func (d *Dictionary) Close() error {
	return d.store.Close()
}

func (d *Dictionary) rebuildLocked() {
	if len(d.entries) == 0 {
		d.pattern = nil
		return
	}

	entries := make([]Entry, 0, len(d.entries))
	for _, entry := range d.entries {
		entries = append(entries, entry)
	}
	sortLongestFirst(entries)

	quoted := make([]string, len(entries))
	for i, entry := range entries {
		quoted[i] = regexp.QuoteMeta(entry.Keyword)
	}
	d.pattern = regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

func sortLongestFirst(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		li := utf8.RuneCountInString(entries[i].Keyword)
		lj := utf8.RuneCountInString(entries[j].Keyword)
		if li != lj {
			return li > lj
		}
		return entries[i].Keyword < entries[j].Keyword
	})
}
