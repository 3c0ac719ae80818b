package stats

import (
	"sort"
	"time"

	"github.com/trezcool/masomo-portal/core/profile"
)

var NowFunc = time.Now // mockable

// Record is the part of a user needed to compute statistics.
type Record struct {
	Role      string
	LastSeen  time.Time
	CreatedAt time.Time
}

func FromProfiles(profiles []profile.Profile) []Record {
	recs := make([]Record, 0, len(profiles))
	for _, p := range profiles {
		recs = append(recs, Record{Role: p.Role, LastSeen: p.LastLoginAt.Time, CreatedAt: p.CreatedAt.Time})
	}
	return recs
}

func FromActivity(entries []ActivityEntry, now time.Time) []Record {
	recs := make([]Record, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, Record{Role: e.Role, LastSeen: NormalizeLastSeen(e.LastSeen, now), CreatedAt: e.CreatedAt.Time})
	}
	return recs
}

type Summary struct {
	Total             int     `json:"total"`
	Active            int     `json:"active"`
	Inactive          int     `json:"inactive"`
	NewUsersThisMonth int     `json:"new_users_this_month"`
	ActivePercent     float64 `json:"active_percent"`
	InactivePercent   float64 `json:"inactive_percent"`
}

func Summarize(records []Record, now time.Time) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		if IsActive(r.LastSeen, now) {
			s.Active++
		}
		if !r.CreatedAt.IsZero() && sameMonth(r.CreatedAt.In(now.Location()), now) {
			s.NewUsersThisMonth++
		}
	}
	s.Inactive = s.Total - s.Active
	if s.Total > 0 {
		s.ActivePercent = percent(s.Active, s.Total)
		s.InactivePercent = percent(s.Inactive, s.Total)
	}
	return s
}

func sameMonth(t, now time.Time) bool {
	return t.Year() == now.Year() && t.Month() == now.Month()
}

// percent rounds to one decimal.
func percent(n, total int) float64 {
	return float64(int(float64(n)*1000/float64(total)+0.5)) / 10
}

type RoleCount struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
}

// ByRole counts records per role, most represented first (ties by role name).
func ByRole(records []Record) []RoleCount {
	counts := make(map[string]int)
	for _, r := range records {
		role := r.Role
		if role == "" {
			role = "unknown"
		}
		counts[role]++
	}
	out := make([]RoleCount, 0, len(counts))
	for role, n := range counts {
		out = append(out, RoleCount{Role: role, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Role < out[j].Role
	})
	return out
}

type MonthBucket struct {
	Month   string `json:"month"` // YYYY-MM
	Active  int    `json:"active"`
	Signups int    `json:"signups"`
}

// MonthlyActivity buckets last logins and signups over the last `months` months (including the current one),
// oldest first.
func MonthlyActivity(records []Record, months int, now time.Time) []MonthBucket {
	if months <= 0 {
		return []MonthBucket{}
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)
	buckets := make([]MonthBucket, months)
	index := make(map[string]int, months)
	for i := range buckets {
		key := first.AddDate(0, i, 0).Format("2006-01")
		buckets[i].Month = key
		index[key] = i
	}
	for _, r := range records {
		if !r.LastSeen.IsZero() {
			if i, ok := index[r.LastSeen.In(now.Location()).Format("2006-01")]; ok {
				buckets[i].Active++
			}
		}
		if !r.CreatedAt.IsZero() {
			if i, ok := index[r.CreatedAt.In(now.Location()).Format("2006-01")]; ok {
				buckets[i].Signups++
			}
		}
	}
	return buckets
}
