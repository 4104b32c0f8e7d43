package models

import "time"

// DefaultElo is the starting rating for a player with no row yet.
const DefaultElo = 1000

// EloRating is the external mutable rating counter the scoring engine nudges
// by a flat delta. It carries no duel invariants of its own.
type EloRating struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"uniqueIndex;not null" json:"user_id"`
	Elo       int       `gorm:"index;default:1000" json:"elo"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (EloRating) TableName() string { return "elo_ratings" }
