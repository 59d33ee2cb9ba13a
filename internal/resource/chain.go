package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PlaceholderInitial is shown when neither a name nor an account is known.
const PlaceholderInitial = "?"

// Candidate is one source in a fallback chain. Lower Priority is tried first.
type Candidate[T any] struct {
	Name     string
	Priority int
	Fetch    func(ctx context.Context) (T, error)
}

// ResolveFirst tries candidates in ascending priority and returns the first
// value that fetches without error and passes usable, along with the winning
// candidate's name. Failures and panics in a source only mark that source as
// unusable. ok is false when every candidate was unusable.
func ResolveFirst[T any](ctx context.Context, candidates []Candidate[T], usable func(T) bool) (value T, winner string, ok bool) {
	ordered := make([]Candidate[T], len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for _, c := range ordered {
		if c.Fetch == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		v, err := safeFetch(ctx, c)
		if err != nil {
			slog.Debug("fallback: source unusable",
				slog.String("source", c.Name),
				slog.String("error", err.Error()))
			chainSkips.WithLabelValues(c.Name).Inc()
			continue
		}
		if usable != nil && !usable(v) {
			chainSkips.WithLabelValues(c.Name).Inc()
			continue
		}
		chainWins.WithLabelValues(c.Name).Inc()
		return v, c.Name, true
	}

	var zero T
	return zero, "", false
}

// ResolveReference runs a chain of reference sources and yields Absent when
// none of them produces a displayable reference.
func ResolveReference(ctx context.Context, candidates []Candidate[Reference]) (Reference, string) {
	ref, winner, ok := ResolveFirst(ctx, candidates, func(r Reference) bool { return !IsAbsent(r) })
	if !ok {
		return Absent{}, ""
	}
	return ref, winner
}

func safeFetch[T any](ctx context.Context, c Candidate[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", c.Name, r)
		}
	}()
	return c.Fetch(ctx)
}

// Initials derives the avatar placeholder: the first letter of the given
// name, else of the account identifier, else PlaceholderInitial.
func Initials(givenName, account string) string {
	for _, s := range []string{givenName, account} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError {
			continue
		}
		return string(unicode.ToUpper(r))
	}
	return PlaceholderInitial
}
