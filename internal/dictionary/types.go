// Package dictionary keeps user-taught term substitutions and applies them
// to recognized speech before schedule parsing.
package dictionary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound reports a keyword with no stored entry.
var ErrNotFound = errors.New("dictionary entry not found")

// Kind classifies what a replacement stands for.
type Kind string

const (
	KindTitle      Kind = "title"
	KindPlace      Kind = "place"
	KindTime       Kind = "time"
	KindPerson     Kind = "person"
	KindCorrection Kind = "correction"
)

// ParseKind validates a kind name. Empty means correction.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case "":
		return KindCorrection, nil
	case KindTitle, KindPlace, KindTime, KindPerson, KindCorrection:
		return k, nil
	default:
		return "", fmt.Errorf("unknown dictionary kind %q", raw)
	}
}

// Entry is one learned substitution. Keyword is stored lowercased.
type Entry struct {
	Keyword     string    `json:"keyword" yaml:"keyword"`
	Replacement string    `json:"replacement" yaml:"replacement"`
	Kind        Kind      `json:"type" yaml:"type"`
	UsageCount  int       `json:"usage_count" yaml:"usage_count,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// Store persists dictionary entries.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Upsert(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, keyword string) error
	IncrementUsage(ctx context.Context, keyword string, at time.Time) error
	Close() error
}

func normalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}
