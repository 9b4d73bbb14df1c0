package scoring

import "scorepad/internal/domain"

type Standing struct {
	PlayerID string
	Pseudo   string
	Total    int
}

// Totals sums every committed round per player. Every player gets an entry,
// missing scores count as zero, and scores for unknown ids are ignored.
func Totals(s domain.Session) map[string]int {
	totals := make(map[string]int, len(s.Players))
	for _, p := range s.Players {
		totals[p.ID] = 0
	}
	for _, r := range s.Rounds {
		for _, p := range s.Players {
			totals[p.ID] += r.Scores[p.ID]
		}
	}
	return totals
}

// Standings returns totals in player order.
func Standings(s domain.Session) []Standing {
	totals := Totals(s)
	out := make([]Standing, len(s.Players))
	for i, p := range s.Players {
		out[i] = Standing{PlayerID: p.ID, Pseudo: p.Pseudo, Total: totals[p.ID]}
	}
	return out
}

// RoundRow returns a round's scores in player order.
func RoundRow(s domain.Session, r domain.Round) []int {
	row := make([]int, len(s.Players))
	for i, p := range s.Players {
		row[i] = r.Scores[p.ID]
	}
	return row
}
