package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/librarium/usermanagement/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, secret string, now time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(secret, time.Hour)
	require.NoError(t, err)
	issuer.now = func() time.Time { return now }
	return issuer
}

func TestNewTokenIssuer_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewTokenIssuer("   ", time.Hour)
	require.ErrorIs(t, err, ErrMissingSigningKey)

	_, err = NewTokenIssuer("k", 0)
	require.Error(t, err)
}

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	t.Parallel()

	now := time.Now().Truncate(time.Second)
	issuer := newTestIssuer(t, "super-secret", now)

	token, expiresAt, err := issuer.Issue("acc-1", types.RoleLibrarian)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	identity, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{AccountID: "acc-1", Role: types.RoleLibrarian}, identity)
}

func TestTokenIssuer_Expired(t *testing.T) {
	t.Parallel()

	issuedAt := time.Now().Truncate(time.Second)
	issuer := newTestIssuer(t, "secret", issuedAt)

	token, _, err := issuer.Issue("acc-1", types.RoleStudent)
	require.NoError(t, err)

	issuer.now = func() time.Time { return issuedAt.Add(59 * time.Minute) }
	_, err = issuer.Verify(token)
	require.NoError(t, err)

	issuer.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuer_TamperedSignature(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t, "secret", time.Now())
	token, _, err := issuer.Issue("acc-1", types.RoleStudent)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = issuer.Verify(tampered)
	require.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestTokenIssuer_WrongKey(t *testing.T) {
	t.Parallel()

	now := time.Now()
	token, _, err := newTestIssuer(t, "right", now).Issue("acc-1", types.RoleAdmin)
	require.NoError(t, err)

	_, err = newTestIssuer(t, "wrong", now).Verify(token)
	require.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestTokenIssuer_TamperedPayload(t *testing.T) {
	t.Parallel()

	now := time.Now()
	issuer := newTestIssuer(t, "secret", now)
	student, _, err := issuer.Issue("acc-1", types.RoleStudent)
	require.NoError(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role: types.RoleAdmin,
	})
	forgedString, err := forged.SignedString([]byte("attacker"))
	require.NoError(t, err)

	// admin payload spliced onto the student token's signature
	studentParts := strings.Split(student, ".")
	forgedParts := strings.Split(forgedString, ".")
	spliced := forgedParts[0] + "." + forgedParts[1] + "." + studentParts[2]

	_, err = issuer.Verify(spliced)
	require.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestTokenIssuer_Malformed(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t, "secret", time.Now())

	for _, raw := range []string{"", "garbage", "not.a.jwt", "a.b"} {
		_, err := issuer.Verify(raw)
		require.ErrorIs(t, err, ErrTokenMalformed, "token %q", raw)
	}
}

func TestTokenIssuer_RejectsMissingClaims(t *testing.T) {
	t.Parallel()

	now := time.Now()
	issuer := newTestIssuer(t, "secret", now)

	tests := map[string]Claims{
		"no expiry": {
			RegisteredClaims: jwt.RegisteredClaims{Subject: "acc-1"},
			Role:             types.RoleStudent,
		},
		"no subject": {
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
			Role:             types.RoleStudent,
		},
		"unknown role": {
			RegisteredClaims: jwt.RegisteredClaims{Subject: "acc-1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
			Role:             types.Role("superuser"),
		},
	}

	for name, claims := range tests {
		t.Run(name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
			require.NoError(t, err)

			_, err = issuer.Verify(signed)
			require.ErrorIs(t, err, ErrTokenMalformed)
		})
	}
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	now := time.Now()
	issuer := newTestIssuer(t, "secret", now)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "acc-1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		Role:             types.RoleAdmin,
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(unsigned)
	require.Error(t, err)
}
