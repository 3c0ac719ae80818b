package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/tests"
)

func TestService_Login(t *testing.T) {
	env := testutil.NewEnv(t)

	tests := []struct {
		name    string
		creds   account.Credentials
		wantErr error
	}{
		{name: "unknown email", creds: account.Credentials{Email: "who@masomo.cd", Password: "password"}, wantErr: account.ErrAuthenticationFailed},
		{name: "wrong password", creds: account.Credentials{Email: testutil.TeacherEmail, Password: "nope"}, wantErr: account.ErrAuthenticationFailed},
		{name: "invalid email", creds: account.Credentials{Email: "awa", Password: "password"}, wantErr: account.ErrAuthenticationFailed},
		{name: "ok", creds: account.Credentials{Email: " AWA@masomo.cd", Password: "password"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			usr, err := env.Account.Login(ctx, tc.creds)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, err)
				assert.False(t, env.Session.Authenticated(ctx))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testutil.TeacherID, usr.ID)
			assert.True(t, usr.IsTeacher())
			assert.True(t, env.Session.Authenticated(ctx))

			stored, ok, err := env.Session.User(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, usr.Email, stored.Email)
		})
	}
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewLoggedInEnv(t, testutil.StudentEmail)

	usr, err := env.Account.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.StudentID, usr.ID)

	var events []auth.LogoutEvent
	cancel := env.Session.Subscribe(func(evt auth.LogoutEvent) { events = append(events, evt) })
	defer cancel()

	token, err := env.Session.Token(ctx)
	require.NoError(t, err)
	require.NoError(t, env.Account.Logout(ctx))
	assert.False(t, env.Session.Authenticated(ctx))

	// the API revoked the token: reusing it expires the session
	require.NoError(t, env.Session.SetCredentials(ctx, token, usr))
	_, err = env.Account.Me(ctx)
	assert.Equal(t, core.ErrSessionExpired, err)
	assert.False(t, env.Session.Authenticated(ctx))

	require.Len(t, events, 2)
	assert.Equal(t, auth.LogoutUser, events[0].Reason)
	assert.Equal(t, testutil.StudentID, events[0].User.ID)
	assert.Equal(t, auth.LogoutExpired, events[1].Reason)

	// without a token nothing is sent
	_, err = env.Account.Me(ctx)
	assert.Equal(t, core.ErrNoToken, err)
}
