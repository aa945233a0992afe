package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

func testTenant() *models.Tenant {
	return &models.Tenant{
		ID:    uuid.New(),
		Email: "owner@example.com",
		Role:  models.RoleUser,
		Plan:  models.PlanPro,
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("0123456789abcdef0123", time.Hour)
	tenant := testTenant()

	token, expiresAt, err := m.Generate(tenant)
	require.NoError(t, err)
	assert.True(t, LooksLikeJWT(token))
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, claims.TenantID)
	assert.Equal(t, tenant.Email, claims.Email)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, models.PlanPro, claims.Plan)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("0123456789abcdef0123", time.Hour).Generate(testTenant())
	require.NoError(t, err)

	_, err = NewTokenManager("another-secret-value!", time.Hour).Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager("0123456789abcdef0123", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.Generate(testTenant())
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenManager_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		TenantID:         uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("0123456789abcdef0123", time.Hour).Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestLooksLikeJWT(t *testing.T) {
	assert.True(t, LooksLikeJWT("a.b.c"))
	assert.False(t, LooksLikeJWT("xb_0123456789"))
	assert.False(t, LooksLikeJWT("a.b"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
}

func TestGenerateAPIKey(t *testing.T) {
	raw, prefix, hash, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "xb_"))
	assert.Len(t, prefix, KeyPrefixLen)
	assert.Equal(t, raw[:KeyPrefixLen], prefix)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)))

	raw2, _, _, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}
