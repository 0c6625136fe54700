package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/keys"
)

func storeWith(t *testing.T, ids ...string) *keys.Store {
	t.Helper()
	s := keys.NewStore()
	for i, id := range ids {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		s.Add(id, key, &key.PublicKey, i == len(ids)-1)
	}
	return s
}

func TestPublisher_Document(t *testing.T) {
	p := NewPublisher(storeWith(t, "a", "b"))

	doc := p.Document()
	require.Len(t, doc.Keys, 2)

	kids := []string{doc.Keys[0].KeyID, doc.Keys[1].KeyID}
	assert.ElementsMatch(t, []string{"a", "b"}, kids)
	for _, k := range doc.Keys {
		assert.Equal(t, "sig", k.Use)
		assert.Equal(t, "RS256", k.Algorithm)
		assert.True(t, k.IsPublic())
	}
}

func TestPublisher_EmptyStore(t *testing.T) {
	p := NewPublisher(keys.NewStore())

	doc := p.Document()
	assert.NotNil(t, doc.Keys)
	assert.Empty(t, doc.Keys)

	// Serializes as {"keys":[]}, never null.
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"keys":[]}`, string(b))
}

func TestPublisher_RefreshPicksUpMutations(t *testing.T) {
	store := storeWith(t, "a")
	p := NewPublisher(store)
	require.Len(t, p.Document().Keys, 1)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	store.Add("b", key, &key.PublicKey, true)

	// No automatic observation: the document is stale until Refresh.
	assert.Len(t, p.Document().Keys, 1)

	p.Refresh()
	assert.Len(t, p.Document().Keys, 2)
}

func TestPublisher_MarshalledFields(t *testing.T) {
	p := NewPublisher(storeWith(t, "sign-2025-06"))

	b, err := json.Marshal(p.Document())
	require.NoError(t, err)

	var parsed struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(b, &parsed))
	require.Len(t, parsed.Keys, 1)

	k := parsed.Keys[0]
	assert.Equal(t, "RSA", k["kty"])
	assert.Equal(t, "sig", k["use"])
	assert.Equal(t, "RS256", k["alg"])
	assert.Equal(t, "sign-2025-06", k["kid"])
	assert.NotEmpty(t, k["n"])
	assert.NotEmpty(t, k["e"])
}
