package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "me@example.com",
		"exp":   exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestProbeLoggedIn(t *testing.T) {
	fake := gateway.NewFake()
	fake.SeedViewer("me@example.com", "me")

	s := New()
	require.NoError(t, s.Probe(context.Background(), fake))
	assert.True(t, s.Authenticated())
	assert.Equal(t, "me@example.com", s.Viewer().Email)
}

func TestProbeAnonymous(t *testing.T) {
	fake := gateway.NewFake() // 无 viewer，后端返回 401

	s := New()
	s.SetViewer(&model.UserSnapshot{Email: "stale@example.com"})
	err := s.Probe(context.Background(), fake)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	// 探测失败必须降级为匿名，不能留着过期的身份
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.Viewer())
}

func TestViewerReturnsCopy(t *testing.T) {
	s := New()
	s.SetViewer(&model.UserSnapshot{Email: "me@example.com", Name: "me"})

	v := s.Viewer()
	v.Name = "mutated"
	assert.Equal(t, "me", s.Viewer().Name)
}

func TestTokenUsable(t *testing.T) {
	assert.True(t, TokenUsable(signedToken(t, time.Now().Add(time.Hour))))
	assert.False(t, TokenUsable(signedToken(t, time.Now().Add(-time.Minute))))
	assert.False(t, TokenUsable("not-a-jwt"))
	assert.False(t, TokenUsable(""))
}

// 没有 exp 声明的 token 视为不可用，宁可让后端判 401
func TestTokenWithoutExpiry(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "me@example.com"})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	assert.False(t, TokenUsable(s))
}
