package registry

import (
	"github.com/sahilm/fuzzy"

	"github.com/rhaume/starledger/internal/domain"
)

// searchItem is one searchable string of a game. Every game contributes
// its id and, when known, its player country name, so "blorg" finds the
// campaign played as the Blorg Commonality.
type searchItem struct {
	gameID string
	text   string
}

// searchItems implements fuzzy.Source.
type searchItems []searchItem

func (s searchItems) Len() int            { return len(s) }
func (s searchItems) String(i int) string { return s[i].text }

// searchItemsLocked builds the fuzzy source in registry order. Callers
// hold at least a read lock.
func (s *Service) searchItemsLocked() searchItems {
	items := make(searchItems, 0, 2*len(s.order))
	for _, id := range s.order {
		items = append(items, searchItem{gameID: id, text: id})
		if country := s.games[id].PlayerCountry; country != "" {
			items = append(items, searchItem{gameID: id, text: country})
		}
	}
	return items
}

// MatchGame resolves a requested game id or player country to the best
// matching known game. An empty query resolves to the first game
// alphabetically; no match at all returns "".
func (s *Service) MatchGame(query string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return "", nil
	}
	if query == "" {
		return s.order[0], nil
	}

	items := s.searchItemsLocked()
	matches := fuzzy.FindFrom(query, items)
	if len(matches) == 0 {
		return "", nil
	}
	return items[matches[0].Index].gameID, nil
}

// Games lists discovered games alphabetically. A non-empty query narrows
// the list by fuzzy match, best matches first, one entry per game.
func (s *Service) Games(query string) []domain.GameInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.GameInfo, 0, len(s.order))
	if query == "" {
		for _, id := range s.order {
			out = append(out, s.games[id])
		}
		return out
	}

	items := s.searchItemsLocked()
	seen := make(map[string]bool)
	for _, match := range fuzzy.FindFrom(query, items) {
		id := items[match.Index].gameID
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, s.games[id])
	}
	return out
}
