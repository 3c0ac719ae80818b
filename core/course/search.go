package course

import (
	"context"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
)

const (
	maxSearchHistory = 10
	minSearchScore   = 0.6
)

type SearchResult struct {
	Course Course
	Score  float64 // 1 for substring matches
}

// Match scores how well `title` matches `query` (both lower cased):
// 1 if the query is part of the title, else the best similarity ratio between the query and any
// window of the title of the same length.
func Match(query, title string) float64 {
	query = core.CleanString(query, true /* lower */)
	title = core.CleanString(title, true /* lower */)
	if query == "" {
		return 0
	}
	if strings.Contains(title, query) {
		return 1
	}

	q := strings.Split(query, "")
	t := strings.Split(title, "")
	if len(t) <= len(q) {
		return difflib.NewMatcher(q, t).Ratio()
	}
	var best float64
	m := difflib.NewMatcher(q, nil)
	for i := 0; i+len(q) <= len(t); i++ {
		m.SetSeq2(t[i : i+len(q)])
		if r := m.Ratio(); r > best {
			best = r
		}
	}
	return best
}

// Search matches `query` against the titles of the listed courses, best matches first.
// The query is added to the search history.
func (c *Client) Search(ctx context.Context, session *auth.Session, query string) ([]SearchResult, error) {
	query = core.CleanString(query)
	if query == "" {
		return nil, nil
	}
	if err := c.addToHistory(ctx, session, query); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0)
	for _, crs := range c.Items() {
		if score := Match(query, crs.Title); score >= minSearchScore {
			results = append(results, SearchResult{Course: crs, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// SearchHistory returns the last queries, most recent first.
func SearchHistory(ctx context.Context, session *auth.Session) []string {
	var hist []string
	if found, _ := session.Draft(ctx, auth.KeySearchHistory, &hist); !found {
		return []string{}
	}
	return hist
}

func (c *Client) addToHistory(ctx context.Context, session *auth.Session, query string) error {
	hist := SearchHistory(ctx, session)
	newHist := make([]string, 0, len(hist)+1)
	newHist = append(newHist, query)
	for _, q := range hist {
		if !strings.EqualFold(q, query) {
			newHist = append(newHist, q)
		}
	}
	if len(newHist) > maxSearchHistory {
		newHist = newHist[:maxSearchHistory]
	}
	return session.SaveDraft(ctx, auth.KeySearchHistory, newHist)
}
