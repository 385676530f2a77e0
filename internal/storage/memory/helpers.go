package memory

import (
	"sort"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
)

func sortByCreatedAt(fps []*domain.TradeFingerprint) {
	sort.Slice(fps, func(i, j int) bool {
		if !fps[i].CreatedAt.Equal(fps[j].CreatedAt) {
			return fps[i].CreatedAt.Before(fps[j].CreatedAt)
		}
		return fps[i].TradeID < fps[j].TradeID
	})
}
