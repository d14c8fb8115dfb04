package database

import (
	"sort"

	"flexiseat/internal/models"
)

// SetDesks replaces the in-memory floor plan. Desks come from the
// configuration file and are not persisted.
func (db *DB) SetDesks(desks []models.Desk) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.desks = make(map[string]models.Desk, len(desks))
	db.sortedDesks = make([]models.Desk, 0, len(desks))
	for _, d := range desks {
		db.desks[d.ID] = d
		db.sortedDesks = append(db.sortedDesks, d)
	}
	sort.Slice(db.sortedDesks, func(i, j int) bool {
		if db.sortedDesks[i].Level != db.sortedDesks[j].Level {
			return db.sortedDesks[i].Level < db.sortedDesks[j].Level
		}
		return db.sortedDesks[i].ID < db.sortedDesks[j].ID
	})

	db.log.Info().Int("count", len(desks)).Msg("floor plan loaded")
}

// GetDesks returns a copy of the floor plan sorted by level then id.
func (db *DB) GetDesks() []models.Desk {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.Desk, len(db.sortedDesks))
	copy(out, db.sortedDesks)
	return out
}

func (db *DB) GetDesk(id string) (models.Desk, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	d, ok := db.desks[id]
	return d, ok
}

func (db *DB) DesksByLevel(level int) []models.Desk {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []models.Desk
	for _, d := range db.sortedDesks {
		if d.Level == level {
			out = append(out, d)
		}
	}
	return out
}

// Levels returns the distinct floor levels in ascending order.
func (db *DB) Levels() []int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	seen := make(map[int]bool)
	var levels []int
	for _, d := range db.sortedDesks {
		if !seen[d.Level] {
			seen[d.Level] = true
			levels = append(levels, d.Level)
		}
	}
	return levels
}
