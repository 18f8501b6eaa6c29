package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStoreAndRetrieve(t *testing.T) {
	mock := NewMockStore()
	m := &Manager{stores: []TokenStore{mock}}

	err := m.Store(&Token{Name: "work", Value: "vk1.a.secret"})
	require.NoError(t, err)

	token, err := m.Retrieve("work")
	require.NoError(t, err)
	assert.Equal(t, "vk1.a.secret", token.Value)
	assert.WithinDuration(t, time.Now(), token.LastModified, time.Minute)
}

func TestManagerDefaultProfile(t *testing.T) {
	mock := NewMockStore()
	m := &Manager{stores: []TokenStore{mock}}

	require.NoError(t, m.Store(&Token{Value: "tok"}))

	token, err := m.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, token.Name)
	assert.True(t, m.Exists(""))
}

func TestManagerRejectsInvalidToken(t *testing.T) {
	m := &Manager{stores: []TokenStore{NewMockStore()}}

	assert.ErrorIs(t, m.Store(nil), ErrInvalidToken)
	assert.ErrorIs(t, m.Store(&Token{Name: "x", Value: ""}), ErrInvalidToken)
}

func TestManagerFallbackOnStoreFailure(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = ErrStoreUnavailable
	working := NewMockStore()
	m := &Manager{stores: []TokenStore{broken, working}}

	require.NoError(t, m.Store(&Token{Name: "p", Value: "tok"}))

	assert.False(t, broken.Exists("p"))
	assert.True(t, working.Exists("p"))
}

func TestManagerFallbackOnRetrieve(t *testing.T) {
	empty := NewMockStore()
	holder := NewMockStore()
	require.NoError(t, holder.Store(&Token{Name: "p", Value: "tok"}))
	m := &Manager{stores: []TokenStore{empty, holder}}

	token, err := m.Retrieve("p")
	require.NoError(t, err)
	assert.Equal(t, "tok", token.Value)
}

func TestManagerRetrieveMissing(t *testing.T) {
	m := &Manager{stores: []TokenStore{NewMockStore()}}

	_, err := m.Retrieve("ghost")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestManagerAllStoresFailing(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = ErrStoreUnavailable
	m := &Manager{stores: []TokenStore{broken}}

	err := m.Store(&Token{Name: "p", Value: "tok"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestManagerListDeduplicates(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	require.NoError(t, first.Store(&Token{Name: "a", Value: "from-first"}))
	require.NoError(t, second.Store(&Token{Name: "a", Value: "from-second"}))
	require.NoError(t, second.Store(&Token{Name: "b", Value: "only-second"}))

	m := &Manager{stores: []TokenStore{first, second}}

	tokens, err := m.List()
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	values := make(map[string]string)
	for _, tok := range tokens {
		values[tok.Name] = tok.Value
	}
	assert.Equal(t, "from-first", values["a"], "the earlier store wins on conflict")
	assert.Equal(t, "only-second", values["b"])
}

func TestManagerDelete(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	require.NoError(t, first.Store(&Token{Name: "p", Value: "x"}))
	require.NoError(t, second.Store(&Token{Name: "p", Value: "y"}))

	m := &Manager{stores: []TokenStore{first, second}}

	require.NoError(t, m.Delete("p"))
	assert.False(t, first.Exists("p"))
	assert.False(t, second.Exists("p"))

	assert.ErrorIs(t, m.Delete("p"), ErrTokenNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("VKHARVEST_TOKEN", "env-token")

	store := NewEnvironmentStore()

	token, err := store.Retrieve(DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, "env-token", token.Value)
	assert.True(t, store.Exists(DefaultProfile))

	// read-only backend
	assert.Error(t, store.Store(&Token{Name: "x", Value: "y"}))
	assert.Error(t, store.Delete(DefaultProfile))
}

func TestEnvironmentStoreUnset(t *testing.T) {
	t.Setenv("VKHARVEST_TOKEN", "")

	store := NewEnvironmentStore()

	_, err := store.Retrieve(DefaultProfile)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.False(t, store.Exists(DefaultProfile))
}

func TestMockStoreErrorInjection(t *testing.T) {
	mock := NewMockStore()
	injected := errors.New("backend down")
	mock.RetrieveError = injected

	_, err := mock.Retrieve("p")
	assert.ErrorIs(t, err, injected)
}
