package stats

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/mail"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/resource"
)

// ActivityEntry is a row of /api/admin/stats/user-activity.
type ActivityEntry struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	LastSeen  string    `json:"last_seen"` // "En ligne", "Il y a 3j", "Jamais"
	CreatedAt core.Time `json:"created_at"`
}

func (e ActivityEntry) IsActive() bool { return IsActiveByLastSeen(e.LastSeen) }

// GlobalStats is the payload of /api/formations/global-stats.
type GlobalStats struct {
	TotalFormations  int     `json:"total_formations"`
	TotalCourses     int     `json:"total_courses"`
	TotalChapters    int     `json:"total_chapters"`
	TotalEnrollments int     `json:"total_enrollments"`
	CompletionRate   float64 `json:"completion_rate"`
	AverageGrade     float64 `json:"average_grade"`
}

type Client struct {
	tr       *resource.Transport
	notifier resource.Notifier
}

func NewClient(tr *resource.Transport, notifier resource.Notifier) *Client {
	return &Client{tr: tr, notifier: notifier}
}

// UserActivity returns the activity of all users (admins only).
// A payload that is not an array yields no entries.
func (c *Client) UserActivity(ctx context.Context) ([]ActivityEntry, error) {
	res, err := c.tr.Send(ctx, resource.Request{Method: rest.Get, Path: "/api/admin/stats/user-activity"})
	if err != nil {
		c.notify(ctx, err)
		return []ActivityEntry{}, err
	}
	entries, _ := resource.DecodeList[ActivityEntry]([]byte(res.Body))
	return entries, nil
}

func (c *Client) GlobalStats(ctx context.Context) (GlobalStats, error) {
	var gs GlobalStats
	if err := c.tr.Do(ctx, rest.Get, "/api/formations/global-stats", nil, &gs); err != nil {
		c.notify(ctx, err)
		return gs, err
	}
	return gs, nil
}

func (c *Client) notify(ctx context.Context, err error) {
	if c.notifier != nil && ctx.Err() == nil {
		c.notifier.Error(resource.UserMessage(err))
	}
}

// Report gathers everything shown on the admin dashboard.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Summary     Summary       `json:"summary"`
	Roles       []RoleCount   `json:"roles"`
	Monthly     []MonthBucket `json:"monthly"`
	Global      GlobalStats   `json:"global"`
}

// Report fetches the user activity and the global stats and aggregates them over the last `months` months.
func (c *Client) Report(ctx context.Context, months int) (Report, error) {
	entries, err := c.UserActivity(ctx)
	if err != nil {
		return Report{}, err
	}
	global, err := c.GlobalStats(ctx)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(entries, global, months, NowFunc()), nil
}

func BuildReport(entries []ActivityEntry, global GlobalStats, months int, now time.Time) Report {
	recs := FromActivity(entries, now)
	return Report{
		GeneratedAt: now,
		Summary:     Summarize(recs, now),
		Roles:       ByRole(recs),
		Monthly:     MonthlyActivity(recs, months, now),
		Global:      global,
	}
}

// MonthlyCSVName is the name of the monthly activity attached to the report email.
const MonthlyCSVName = "activite_mensuelle.csv"

// WriteMonthlyCSV writes the monthly buckets as CSV, with a header row.
func (r Report) WriteMonthlyCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"mois", "actifs", "inscrits"})
	for _, b := range r.Monthly {
		_ = cw.Write([]string{b.Month, strconv.Itoa(b.Active), strconv.Itoa(b.Signups)})
	}
	cw.Flush()
	return cw.Error()
}

// EmailMessage returns the "stats_report" email of the report, with the monthly activity attached as CSV.
func (r Report) EmailMessage(to ...mail.Address) (*core.EmailMessage, error) {
	msg := &core.EmailMessage{
		To:           to,
		Subject:      "Rapport d'activité du " + r.GeneratedAt.Format("02/01/2006"),
		TemplateName: "stats_report",
		TemplateData: r,
	}
	var buf bytes.Buffer
	if err := r.WriteMonthlyCSV(&buf); err != nil {
		return nil, errors.Wrap(err, "writing monthly activity")
	}
	if err := msg.Attach(&buf, MonthlyCSVName, "text/csv; charset=utf-8"); err != nil {
		return nil, errors.Wrap(err, "attaching monthly activity")
	}
	return msg, nil
}
