package secret

import (
	"context"
	"sort"

	"github.com/jira-jenkins-integ/internal/config"
)

// StaticStore serves credentials declared in the configuration file.
type StaticStore struct {
	creds map[string]config.CredentialConfig
}

// NewStaticStore indexes the configured credentials by id.
func NewStaticStore(creds []config.CredentialConfig) *StaticStore {
	s := &StaticStore{creds: make(map[string]config.CredentialConfig, len(creds))}
	for _, c := range creds {
		s.creds[c.ID] = c
	}
	return s
}

// SecretFor implements Retriever. A declared credential whose env variable is empty
// counts as missing.
func (s *StaticStore) SecretFor(_ context.Context, credentialsID string) (string, bool, error) {
	c, ok := s.creds[credentialsID]
	if !ok {
		return "", false, nil
	}
	val, err := c.ResolveSecret()
	if err != nil {
		return "", false, nil
	}
	return val, true, nil
}

// CredentialIDs implements Lister, returning credentials scoped to the Atlassian API.
func (s *StaticStore) CredentialIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.creds))
	for id, c := range s.creds {
		if c.Domain != config.AtlassianAPIURL {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
