package auth

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	svc := NewJWT("secret", time.Hour)

	token, err := svc.Sign(42)
	require.NoError(t, err)

	uid, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), uid)

	_, err = NewJWT("other", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewJWT("secret", time.Minute)
	token, err := svc.Sign(7)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	svc := NewJWT("secret", time.Hour)
	token, err := svc.Sign(9)
	require.NoError(t, err)

	h := RequireAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(strconv.FormatInt(uid, 10)))
	}))

	tests := []struct {
		name   string
		target string
		header string
		code   int
	}{
		{"header", "/", "Bearer " + token, http.StatusOK},
		{"query", "/?token=" + token, "", http.StatusOK},
		{"missing", "/", "", http.StatusUnauthorized},
		{"garbage", "/", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "9", rec.Body.String())
			}
		})
	}
}
