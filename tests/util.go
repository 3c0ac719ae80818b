package testutil

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	sandboxapi "github.com/trezcool/masomo-portal/apps/sandbox/echo"
	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/resource"
	"github.com/trezcool/masomo-portal/services/notify"
)

// Seeded sandbox users.
const (
	AdminEmail   = "admin@masomo.cd"
	TeacherEmail = "awa@masomo.cd"
	StudentEmail = "grace@masomo.cd"

	TeacherID = 3
	StudentID = 6
)

// Env is a seeded sandbox server and a client transport pointing to it.
type Env struct {
	Server    *sandboxapi.Server
	URL       string
	Session   *auth.Session
	Transport *resource.Transport
	Account   *account.Service
	Toaster   *notify.Toaster
}

// NewEnv starts a seeded sandbox server (stopped at the end of the test).
func NewEnv(t *testing.T) *Env {
	t.Helper()

	srv, err := sandboxapi.NewServer(&sandboxapi.Options{
		AppName:        "Masomo",
		SecretKey:      "test-secret",
		DisableReqLogs: true,
		Seed:           true,
		BcryptCost:     bcrypt.MinCost,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	session := auth.NewSession(auth.NewMemoryStore(), nil)
	tr, err := resource.NewTransport(resource.TransportOptions{BaseURL: ts.URL, Session: session})
	require.NoError(t, err)

	return &Env{
		Server:    srv,
		URL:       ts.URL,
		Session:   session,
		Transport: tr,
		Account:   account.NewService(tr, nil),
		Toaster:   notify.NewRecorder(),
	}
}

// Login logs the seeded user `email` in.
func (env *Env) Login(t *testing.T, email string) auth.User {
	t.Helper()
	usr, err := env.Account.Login(context.Background(), account.Credentials{Email: email, Password: sandboxapi.SeedPassword})
	require.NoError(t, err)
	return usr
}

// NewLoggedInEnv starts a sandbox and logs `email` in.
func NewLoggedInEnv(t *testing.T, email string) *Env {
	t.Helper()
	env := NewEnv(t)
	env.Login(t, email)
	return env
}
