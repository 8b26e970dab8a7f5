// Package secret resolves credential references into secret strings.
package secret

import (
	"context"
	"fmt"
	"sort"
)

// Retriever resolves a credential reference. A missing credential is reported as
// found=false rather than as an error.
type Retriever interface {
	SecretFor(ctx context.Context, credentialsID string) (string, bool, error)
}

// Lister enumerates credential references usable for the Atlassian API domain.
type Lister interface {
	CredentialIDs(ctx context.Context) ([]string, error)
}

// Store is a credential source that can both resolve and enumerate.
type Store interface {
	Retriever
	Lister
}

// Chain consults stores in order and returns the first hit.
type Chain []Store

// SecretFor implements Retriever.
func (c Chain) SecretFor(ctx context.Context, credentialsID string) (string, bool, error) {
	for _, s := range c {
		val, ok, err := s.SecretFor(ctx, credentialsID)
		if err != nil {
			return "", false, err
		}
		if ok {
			return val, true, nil
		}
	}
	return "", false, nil
}

// CredentialIDs implements Lister. IDs are deduplicated and sorted.
func (c Chain) CredentialIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, s := range c {
		ids, err := s.CredentialIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Item is one option of the credentials selection list.
type Item struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ListCredentialItems builds the credentials selection list. Administrators get an
// empty option followed by every matching credential; anyone else only sees the
// currently selected value.
func ListCredentialItems(ctx context.Context, lister Lister, isAdmin bool, current string) ([]Item, error) {
	if !isAdmin {
		if current == "" {
			return []Item{}, nil
		}
		return []Item{{Name: current, Value: current}}, nil
	}

	ids, err := lister.CredentialIDs(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(ids)+1)
	items = append(items, Item{Name: "- none -", Value: ""})
	for _, id := range ids {
		items = append(items, Item{Name: id, Value: id})
	}
	return items, nil
}
