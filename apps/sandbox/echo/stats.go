package sandboxapi

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/stats"
)

// onlineWindow is how recently a user must have logged in to be shown "En ligne".
const onlineWindow = 5 * time.Minute

func registerStatsAPI(g *echo.Group, api *api) {
	g.GET("/admin/stats/user-activity", api.userActivity, adminMiddleware())
	g.GET("/formations/global-stats", api.globalStats)
}

// lastSeenLabel renders the time since the last login the way the API does ("En ligne", "Il y a 3j", "Jamais").
// Started days count: a login 30 days and 1 hour ago is "Il y a 31j", inactive like its timestamp.
func lastSeenLabel(lastLogin, now time.Time) string {
	switch {
	case lastLogin.IsZero():
		return "Jamais"
	case now.Sub(lastLogin) <= onlineWindow:
		return "En ligne"
	default:
		return fmt.Sprintf("Il y a %dj", int(math.Ceil(now.Sub(lastLogin).Hours()/24)))
	}
}

func (api *api) userActivity(ctx echo.Context) error {
	now := api.now()
	users := api.db.Users.All()
	entries := make([]stats.ActivityEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, stats.ActivityEntry{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role,
			LastSeen:  lastSeenLabel(u.LastLoginAt, now),
			CreatedAt: core.NewTime(u.CreatedAt),
		})
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *api) globalStats(ctx echo.Context) error {
	gs := stats.GlobalStats{
		TotalFormations:  api.db.Formations.Count(nil),
		TotalCourses:     api.db.Courses.Count(nil),
		TotalChapters:    api.db.Chapters.Count(nil),
		TotalEnrollments: api.db.Enrollments.Count(nil),
	}
	if gs.TotalEnrollments > 0 {
		completed := api.db.Enrollments.Count(func(e enrollment.Enrollment) bool { return e.Status == enrollment.StatusCompleted })
		gs.CompletionRate = round1(float64(completed) * 100 / float64(gs.TotalEnrollments))
	}
	if evals := api.db.Evaluations.All(); len(evals) > 0 {
		var sum float64
		for _, e := range evals {
			sum += e.Grade
		}
		gs.AverageGrade = round1(sum / float64(len(evals)))
	}
	return ctx.JSON(http.StatusOK, gs)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
