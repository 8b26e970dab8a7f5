package secret

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/99designs/keyring"

	"github.com/jira-jenkins-integ/internal/config"
)

// KeyringStore keeps credentials in the system keyring. Keys are prefixed with the
// host of the Atlassian API so that only compatible credentials are listed.
type KeyringStore struct {
	ring   keyring.Keyring
	prefix string
}

// OpenKeyring opens the keyring described by cfg.
func OpenKeyring(cfg config.KeyringConfig) (*KeyringStore, error) {
	backends := make([]keyring.BackendType, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		backends = append(backends, keyring.BackendType(strings.TrimSpace(b)))
	}
	if len(backends) == 0 {
		backends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
	}

	fileDir := cfg.FileDir
	if fileDir == "" {
		fileDir = "~/.config/" + cfg.Service + "/credentials"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              cfg.Service,
		AllowedBackends:          backends,
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.Service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring, prefix: domainPrefix(config.AtlassianAPIURL)}
}

func domainPrefix(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return apiURL + "/"
	}
	return u.Host + "/"
}

// SecretFor implements Retriever.
func (k *KeyringStore) SecretFor(_ context.Context, credentialsID string) (string, bool, error) {
	item, err := k.ring.Get(k.prefix + credentialsID)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting credential %q: %w", credentialsID, err)
	}
	return string(item.Data), true, nil
}

// CredentialIDs implements Lister.
func (k *KeyringStore) CredentialIDs(context.Context) ([]string, error) {
	keys, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("listing keyring: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := strings.CutPrefix(key, k.prefix); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Set stores a credential value.
func (k *KeyringStore) Set(credentialsID, value string) error {
	err := k.ring.Set(keyring.Item{
		Key:   k.prefix + credentialsID,
		Data:  []byte(value),
		Label: "Jira Cloud build info: " + credentialsID,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", credentialsID, err)
	}
	return nil
}

// Delete removes a credential.
func (k *KeyringStore) Delete(credentialsID string) error {
	if err := k.ring.Remove(k.prefix + credentialsID); err != nil {
		return fmt.Errorf("deleting credential %q: %w", credentialsID, err)
	}
	return nil
}
