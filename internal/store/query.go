package store

import (
	"context"
	"strings"
)

// Matcher evaluates a boolean filter expression against artifact variables.
type Matcher interface {
	Check(expression string) error
	Match(ctx context.Context, expression string, data map[string]any) (bool, error)
}

// maxScan bounds how many rows QueryArtifacts reads while applying an expression.
const maxScan = 1000

// QueryArtifacts lists artifacts and keeps those for which expression holds.
// With an empty expression it is ListArtifacts. Otherwise rows are paged
// from the store (ignoring filter.Offset) until filter.Limit matches are
// found or maxScan rows have been read.
func QueryArtifacts(ctx context.Context, s Store, m Matcher, filter ArtifactFilter, expression string) ([]*Artifact, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return s.ListArtifacts(ctx, filter)
	}
	if err := m.Check(expression); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	page := filter
	page.Limit = DefaultListLimit
	page.Offset = 0

	var out []*Artifact
	for scanned := 0; scanned < maxScan; {
		batch, err := s.ListArtifacts(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, a := range batch {
			ok, err := m.Match(ctx, expression, a.FilterVars())
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, a)
				if len(out) == limit {
					return out, nil
				}
			}
		}
		scanned += len(batch)
		if len(batch) < page.Limit {
			break
		}
		page.Offset += len(batch)
	}
	return out, nil
}
