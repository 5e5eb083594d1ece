package playlist

import (
	"sort"
	"strings"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/xrash/smetrics"
)

// minFindScore is the lowest Jaro-Winkler similarity reported by Find
const minFindScore = 0.7

// Match is a track located by Find
type Match struct {
	Playlist string
	Index    int
	Track    music.Track
	Score    float64
}

// Find returns the tracks whose titles best match query across all
// playlists, highest score first. A title containing the query as a
// substring always matches. limit <= 0 returns every match.
func (s *Store) Find(query string, limit int) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	s.mu.RLock()
	var matches []Match
	for name, items := range s.playlists {
		for i, t := range items {
			title := strings.ToLower(t.Title)
			score := smetrics.JaroWinkler(q, title, 0.7, 4)
			if strings.Contains(title, q) {
				score = 1.0
			}
			if score < minFindScore {
				continue
			}
			matches = append(matches, Match{Playlist: name, Index: i, Track: t, Score: score})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Playlist != matches[j].Playlist {
			return matches[i].Playlist < matches[j].Playlist
		}
		return matches[i].Index < matches[j].Index
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
