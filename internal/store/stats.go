package store

import (
	"context"
	"math"

	"jobtrack-engine/internal/status"
)

type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByCompany  map[string]int `json:"by_company"`
	ByLocation map[string]int `json:"by_location"`
}

type FunnelStage struct {
	Stage      string  `json:"stage"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

func (s *Applications) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		ByStatus:   map[string]int{},
		ByCompany:  map[string]int{},
		ByLocation: map[string]int{},
	}

	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications;`).Scan(&st.Total); err != nil {
		return Stats{}, err
	}

	groups := []struct {
		query string
		into  map[string]int
	}{
		{`SELECT status, COUNT(*) FROM applications GROUP BY status;`, st.ByStatus},
		{`
SELECT company, COUNT(*) AS n FROM applications
GROUP BY company_key
ORDER BY n DESC, company ASC
LIMIT 10;`, st.ByCompany},
		{`
SELECT location, COUNT(*) AS n FROM applications
WHERE location != ''
GROUP BY location
ORDER BY n DESC, location ASC
LIMIT 10;`, st.ByLocation},
	}

	for _, g := range groups {
		if err := countInto(ctx, s, g.query, g.into); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}

func countInto(ctx context.Context, s *Applications, query string, into map[string]int) error {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		into[k] = n
	}
	return rows.Err()
}

// Funnel reports every status in pipeline order with its share of all applications.
func Funnel(st Stats) []FunnelStage {
	if st.Total == 0 {
		return []FunnelStage{}
	}
	out := make([]FunnelStage, 0, len(status.All()))
	for _, s := range append(status.Active(), status.Outcomes()...) {
		n := st.ByStatus[string(s)]
		pct := float64(n) / float64(st.Total) * 100
		out = append(out, FunnelStage{
			Stage:      string(s),
			Count:      n,
			Percentage: math.Round(pct*10) / 10,
		})
	}
	return out
}
