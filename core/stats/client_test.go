package stats_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/stats"
	"github.com/trezcool/masomo-portal/services/notify"
	"github.com/trezcool/masomo-portal/tests"
)

func TestClient_Report(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewLoggedInEnv(t, testutil.AdminEmail)
	c := stats.NewClient(env.Transport, env.Toaster)

	entries, err := c.UserActivity(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 7)
	assert.Equal(t, "En ligne", entries[0].LastSeen) // just logged in
	assert.True(t, entries[0].IsActive())

	report, err := c.Report(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Summary.Total)
	assert.Equal(t, 5, report.Summary.Active)
	assert.Equal(t, 2, report.Summary.Inactive)
	assert.Equal(t, 71.4, report.Summary.ActivePercent)
	assert.Len(t, report.Monthly, 3)
	assert.Equal(t, 3, report.Global.TotalFormations)
	assert.Equal(t, 14.0, report.Global.AverageGrade)

	roles := make(map[string]int, len(report.Roles))
	for _, rc := range report.Roles {
		roles[rc.Role] = rc.Count
	}
	assert.Equal(t, map[string]int{"admin": 1, "super_admin": 1, "teacher": 2, "student": 3}, roles)
}

func TestClient_forbidden(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewLoggedInEnv(t, testutil.TeacherEmail)
	c := stats.NewClient(env.Transport, env.Toaster)

	entries, err := c.UserActivity(ctx)
	require.Error(t, err)
	assert.True(t, core.IsHTTPStatus(err, http.StatusForbidden))
	assert.Empty(t, entries)

	toast, ok := env.Toaster.Last(notify.LevelError)
	require.True(t, ok)
	assert.Equal(t, "Erreur HTTP: 403", toast.Message)

	// global stats are public to logged in users
	gs, err := c.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, gs.TotalCourses)
}

func TestClient_cancelled(t *testing.T) {
	env := testutil.NewLoggedInEnv(t, testutil.AdminEmail)
	c := stats.NewClient(env.Transport, env.Toaster)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := c.GlobalStats(ctx)
	require.Error(t, err)
	assert.Empty(t, env.Toaster.History())
}
