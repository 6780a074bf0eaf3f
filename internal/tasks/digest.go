package tasks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/desertthunder/plsync/internal/models"
)

// digestRecord fixes the hashed fields and their order; fields are declared alphabetically.
type digestRecord struct {
	Album   string   `json:"album"`
	Artists []string `json:"artists"`
	ID      string   `json:"id"`
	ISRC    string   `json:"isrc"`
	Title   string   `json:"title"`
}

// Digest returns the hex SHA-256 of the track list in source order.
//
// It is sensitive to track order and to id, title, artists, album and isrc.
func Digest(tracks []models.Track) string {
	records := make([]digestRecord, 0, len(tracks))
	for _, t := range tracks {
		artists := t.Artists
		if artists == nil {
			artists = []string{}
		}
		records = append(records, digestRecord{
			Album:   t.Album,
			Artists: artists,
			ID:      t.ID,
			ISRC:    t.ISRC,
			Title:   t.Title,
		})
	}

	// Marshalling a slice of plain structs cannot fail.
	raw, _ := json.Marshal(records)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
