package stats

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/profile"
)

var now = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func TestIsActiveByLastSeen(t *testing.T) {
	NowFunc = func() time.Time { return now }
	defer func() { NowFunc = time.Now }()

	tests := []struct {
		label string
		want  bool
	}{
		{"En ligne", true},
		{"en ligne", true},
		{"  EN LIGNE ", true},
		{"Il y a 10j", true},
		{"il y a 30j", true},
		{"Il y a 31j", false},
		{"Il y a 45j", false},
		{"Il y a 2 jours", true},
		{"Jamais", false},
		{"", false},
		{"hier", false},
		{"Il y a 106752j", false},
		{"Il y a 213504j", false},
		{"Il y a 99999999999999999999j", false},
	}
	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			assert.Equal(t, tc.want, IsActiveByLastSeen(tc.label))
		})
	}
}

func TestIsActive(t *testing.T) {
	assert.False(t, IsActive(time.Time{}, now))
	assert.True(t, IsActive(now, now))
	assert.True(t, IsActive(now.Add(-ActiveWindow), now))
	assert.False(t, IsActive(now.Add(-ActiveWindow-time.Minute), now))
}

func TestNormalizeLastSeen(t *testing.T) {
	assert.Equal(t, now, NormalizeLastSeen("En ligne", now))
	assert.Equal(t, now.AddDate(0, 0, -3), NormalizeLastSeen("Il y a 3j", now))
	assert.True(t, NormalizeLastSeen("Jamais", now).IsZero())
	assert.Equal(t, now.AddDate(0, 0, -106751), NormalizeLastSeen("Il y a 106751j", now))
	assert.True(t, NormalizeLastSeen("Il y a 213504j", now).IsZero())
}

func TestSummarize(t *testing.T) {
	records := []Record{
		{Role: "student", LastSeen: now.AddDate(0, 0, -1), CreatedAt: now.AddDate(0, 0, -2)},
		{Role: "student", LastSeen: now.AddDate(0, 0, -45), CreatedAt: time.Date(2023, time.March, 10, 0, 0, 0, 0, time.UTC)}, // same month, last year
		{Role: "teacher", CreatedAt: time.Date(2024, time.February, 28, 0, 0, 0, 0, time.UTC)},
		{Role: "admin", LastSeen: now, CreatedAt: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
	}

	s := Summarize(records, now)
	assert.Equal(t, Summary{
		Total:             4,
		Active:            2,
		Inactive:          2,
		NewUsersThisMonth: 2,
		ActivePercent:     50,
		InactivePercent:   50,
	}, s)

	assert.Equal(t, Summary{}, Summarize(nil, now))

	s = Summarize(records[:3], now)
	assert.Equal(t, 33.3, s.ActivePercent)
	assert.Equal(t, 66.7, s.InactivePercent)
}

func TestByRole(t *testing.T) {
	got := ByRole([]Record{{Role: "student"}, {Role: "teacher"}, {Role: "student"}, {}})
	assert.Equal(t, []RoleCount{
		{Role: "student", Count: 2},
		{Role: "teacher", Count: 1},
		{Role: "unknown", Count: 1},
	}, got)
}

func TestMonthlyActivity(t *testing.T) {
	records := []Record{
		{LastSeen: now, CreatedAt: time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)},
		{LastSeen: time.Date(2024, time.February, 2, 0, 0, 0, 0, time.UTC), CreatedAt: time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)},
	}

	got := MonthlyActivity(records, 3, now)
	assert.Equal(t, []MonthBucket{
		{Month: "2024-01", Signups: 1},
		{Month: "2024-02", Active: 1},
		{Month: "2024-03", Active: 1},
	}, got)

	assert.Empty(t, MonthlyActivity(records, 0, now))
}

func TestFromProfiles(t *testing.T) {
	profiles := []profile.Profile{
		{ID: 1, Role: "student", LastLoginAt: core.NewTime(now), CreatedAt: core.NewTime(now)},
		{ID: 2, Role: "teacher"},
	}
	recs := FromProfiles(profiles)
	require.Len(t, recs, 2)
	assert.True(t, IsActive(recs[0].LastSeen, now))
	assert.False(t, IsActive(recs[1].LastSeen, now))
}

func TestBuildReport(t *testing.T) {
	entries := []ActivityEntry{
		{ID: 1, Role: "student", LastSeen: "En ligne", CreatedAt: core.NewTime(now)},
		{ID: 2, Role: "student", LastSeen: "Il y a 45j"},
		{ID: 3, Role: "teacher", LastSeen: "Il y a 10j"},
	}
	r := BuildReport(entries, GlobalStats{TotalCourses: 4}, 2, now)

	assert.Equal(t, 3, r.Summary.Total)
	assert.Equal(t, 2, r.Summary.Active)
	assert.Equal(t, 1, r.Summary.NewUsersThisMonth)
	assert.Len(t, r.Monthly, 2)
	assert.Equal(t, 4, r.Global.TotalCourses)

	msg, err := r.EmailMessage()
	require.NoError(t, err)
	assert.Equal(t, "stats_report", msg.TemplateName)
	assert.Equal(t, "Rapport d'activité du 15/03/2024", msg.Subject)

	require.Len(t, msg.Attachments, 1)
	at := msg.Attachments[0]
	assert.Equal(t, MonthlyCSVName, at.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", at.ContentType)
	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, "mois,actifs,inscrits\n2024-02,0,0\n2024-03,2,1\n", string(content))
}
