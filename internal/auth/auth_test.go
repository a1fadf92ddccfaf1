// internal/auth/auth_test.go
package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := ComparePasswordAndHash("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePasswordAndHash("battery staple", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeHashRejectsGarbage(t *testing.T) {
	_, _, _, err := DecodeHash("not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, _, _, err = DecodeHash("$argon2id$v=1$m=1,t=1,p=1$c2FsdA$a2V5")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestHashCarriesItsOwnCosts(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, SetHashParams(DefaultHashParams())) })

	cheap := HashParams{MemoryKiB: 64, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
	require.NoError(t, SetHashParams(cheap))
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.Contains(t, hash, "$m=64,t=1,p=1$")

	p, salt, key, err := DecodeHash(hash)
	require.NoError(t, err)
	assert.Equal(t, cheap, p)
	assert.Len(t, salt, 8)
	assert.Len(t, key, 16)
	assert.False(t, NeedsRehash(hash))

	require.NoError(t, SetHashParams(DefaultHashParams()))
	assert.True(t, NeedsRehash(hash))
	ok, err := ComparePasswordAndHash("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetHashParamsRejectsUnusableCosts(t *testing.T) {
	for name, p := range map[string]HashParams{
		"no iterations": {MemoryKiB: 64, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		"no lanes":      {MemoryKiB: 64, Iterations: 1, SaltLength: 16, KeyLength: 32},
		"memory":        {MemoryKiB: 8, Iterations: 1, Parallelism: 4, SaltLength: 16, KeyLength: 32},
		"short salt":    {MemoryKiB: 64, Iterations: 1, Parallelism: 1, SaltLength: 4, KeyLength: 32},
	} {
		assert.ErrorIs(t, SetHashParams(p), ErrInvalidHashParams, name)
	}
	assert.Equal(t, DefaultHashParams(), hashParams)
}

func TestJWTRoundTrip(t *testing.T) {
	require.NoError(t, Init())
	SetTokenExpiry(time.Hour)
	t.Cleanup(func() { SetTokenExpiry(0) })

	userID := uuid.New()
	token, err := CreateJWT(userID.String())
	require.NoError(t, err)

	sub, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), sub)
	assert.Equal(t, 3600, CookieMaxAge())

	_, err = AuthenticateJWT(token + "x")
	assert.Error(t, err)
}

func TestJWTFromOtherKeyRejected(t *testing.T) {
	require.NoError(t, Init())
	token, err := CreateJWT(uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, Init())
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestUserFromRequest(t *testing.T) {
	require.NoError(t, Init())
	userID := uuid.New()
	token, err := CreateJWT(userID.String())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	SetAuthCookie(rec, token)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	got, err := UserFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = UserFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoToken)

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	_, err = UserFromRequest(bad)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)
}
