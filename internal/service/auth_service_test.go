package service

import (
	"testing"
	"time"
	"video_edu_backend/internal/config"
	"video_edu_backend/internal/model"
	"video_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(env *testEnv) *AuthService {
	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret-for-unit-tests-only!", ExpireTime: time.Hour},
	}
	return NewAuthService(env.users, cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(env)

	user, err := auth.Register(&RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "correct-horse", user.Password)

	token, logged, err := auth.Login(&LoginInput{Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := util.ParseJWT(token, "test-secret-for-unit-tests-only!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(env)

	_, err := auth.Register(&RegisterInput{Username: "alice", Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = auth.Register(&RegisterInput{Username: "alice2", Email: "a@example.com", Password: "password2"})
	assert.True(t, util.IsConflict(err))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(env)

	_, err := auth.Register(&RegisterInput{Username: "bob", Email: "b@example.com", Password: "password1"})
	require.NoError(t, err)

	_, _, err = auth.Login(&LoginInput{Email: "b@example.com", Password: "wrong"})
	assert.True(t, util.IsValidation(err))

	_, _, err = auth.Login(&LoginInput{Email: "nobody@example.com", Password: "password1"})
	assert.True(t, util.IsValidation(err))
}
