package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rbright/dpt/internal/cli"
	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/dictionary"
	"github.com/rbright/dpt/internal/schedule"
)

type parseOutput struct {
	Schedule    schedule.Schedule `json:"schedule"`
	Description string            `json:"description"`
	Accepted    bool              `json:"accepted"`
	Confident   bool              `json:"confident"`
}

// commandParse prints the schedule parsed from the command line as JSON.
func (r Runner) commandParse(ctx context.Context, cfg config.Config, logger *slog.Logger, parsed cli.Parsed) int {
	dom, err := openDomain(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer dom.Close()

	reference := parsed.At
	if reference.IsZero() {
		reference = time.Now()
	}
	reference = reference.In(dom.location)

	result, err := dom.parser.Parse(parsed.Text, reference)
	if err != nil {
		if schedule.IsNoParse(err) {
			fmt.Fprintf(r.Stderr, "error: no schedule found in %q\n", parsed.Text)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	encoder := json.NewEncoder(r.Stdout)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(parseOutput{
		Schedule:    result,
		Description: result.Describe(reference),
		Accepted:    result.Confidence > cfg.Parser.AutoThreshold,
		Confident:   result.Confidence >= cfg.Parser.ConfirmThreshold,
	}); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) commandDict(ctx context.Context, cfg config.Config, logger *slog.Logger, parsed cli.Parsed) int {
	store, err := dictionary.OpenStore(ctx, cfg.Dictionary.Store)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open dictionary store: %v\n", err)
		return 1
	}
	dict, err := dictionary.Load(ctx, store, logger)
	if err != nil {
		_ = store.Close()
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = dict.Close() }()

	switch parsed.Dict {
	case cli.DictList:
		return r.dictList(dict)
	case cli.DictLearn:
		kindName := ""
		if len(parsed.Operands) == 3 {
			kindName = parsed.Operands[2]
		}
		kind, err := dictionary.ParseKind(kindName)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 2
		}
		entry, err := dict.Learn(ctx, parsed.Operands[0], parsed.Operands[1], kind)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "learned %s -> %s (%s)\n", entry.Keyword, entry.Replacement, entry.Kind)
		return 0
	case cli.DictForget:
		if err := dict.Forget(ctx, parsed.Operands[0]); err != nil {
			if errors.Is(err, dictionary.ErrNotFound) {
				fmt.Fprintf(r.Stderr, "error: %q is not in the dictionary\n", parsed.Operands[0])
				return 1
			}
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "forgot %s\n", parsed.Operands[0])
		return 0
	case cli.DictImport:
		file, err := os.Open(config.ExpandUser(parsed.Operands[0]))
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		defer file.Close()
		count, err := dict.Import(ctx, file)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "imported %d entries\n", count)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported dict action %q\n", parsed.Dict)
		return 2
	}
}

func (r Runner) dictList(dict *dictionary.Dictionary) int {
	entries := dict.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(r.Stdout, "dictionary is empty")
		return 0
	}
	w := tabwriter.NewWriter(r.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEYWORD\tREPLACEMENT\tTYPE\tUSES")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", entry.Keyword, entry.Replacement, entry.Kind, entry.UsageCount)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
