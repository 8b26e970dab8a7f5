package secret

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jira-jenkins-integ/internal/config"
)

func TestStaticStore(t *testing.T) {
	t.Setenv("SECRET_FROM_ENV", "env-value")
	store := NewStaticStore([]config.CredentialConfig{
		{ID: "inline", Domain: config.AtlassianAPIURL, Secret: "inline-value"},
		{ID: "env", Domain: config.AtlassianAPIURL, SecretEnv: "SECRET_FROM_ENV"},
		{ID: "empty-env", Domain: config.AtlassianAPIURL, SecretEnv: "SECRET_NOT_SET_FOR_TEST"},
		{ID: "other-domain", Domain: "https://example.com", Secret: "x"},
	})
	ctx := context.Background()

	val, ok, err := store.SecretFor(ctx, "inline")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "inline-value", val)

	val, ok, err = store.SecretFor(ctx, "env")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "env-value", val)

	_, ok, err = store.SecretFor(ctx, "empty-env")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.SecretFor(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := store.CredentialIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty-env", "env", "inline"}, ids)
}

func TestKeyringStore(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	store := NewKeyringStore(ring)
	ctx := context.Background()

	require.NoError(t, store.Set("jira-token", "abc"))
	require.NoError(t, ring.Set(keyring.Item{Key: "example.com/foreign", Data: []byte("x")}))

	val, ok, err := store.SecretFor(ctx, "jira-token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", val)

	_, ok, err = store.SecretFor(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := store.CredentialIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jira-token"}, ids)

	require.NoError(t, store.Delete("jira-token"))
	_, ok, err = store.SecretFor(ctx, "jira-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChain(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	kr := NewKeyringStore(ring)
	require.NoError(t, kr.Set("shared", "from-keyring"))
	require.NoError(t, kr.Set("only-keyring", "k"))

	chain := Chain{
		NewStaticStore([]config.CredentialConfig{
			{ID: "shared", Domain: config.AtlassianAPIURL, Secret: "from-config"},
		}),
		kr,
	}
	ctx := context.Background()

	val, ok, err := chain.SecretFor(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-config", val)

	val, ok, err = chain.SecretFor(ctx, "only-keyring")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "k", val)

	ids, err := chain.CredentialIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"only-keyring", "shared"}, ids)
}

func TestListCredentialItems(t *testing.T) {
	store := NewStaticStore([]config.CredentialConfig{
		{ID: "b", Domain: config.AtlassianAPIURL, Secret: "1"},
		{ID: "a", Domain: config.AtlassianAPIURL, Secret: "2"},
	})
	ctx := context.Background()

	items, err := ListCredentialItems(ctx, store, true, "")
	require.NoError(t, err)
	assert.Equal(t, []Item{{Name: "- none -", Value: ""}, {Name: "a", Value: "a"}, {Name: "b", Value: "b"}}, items)

	items, err = ListCredentialItems(ctx, store, false, "b")
	require.NoError(t, err)
	assert.Equal(t, []Item{{Name: "b", Value: "b"}}, items)

	items, err = ListCredentialItems(ctx, store, false, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}
