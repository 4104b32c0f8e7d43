package services

import (
	"quiz-duel-system/models"

	"gorm.io/gorm"
)

// IdentityLookup resolves a display name for a participant id. The duel core
// treats the identity store as optional: any miss or failure degrades to the
// supplied fallback, never to an error.
type IdentityLookup interface {
	Username(userID, fallback string) string
}

// DBIdentityLookup reads from the locally synced duel_users snapshot.
type DBIdentityLookup struct {
	DB *gorm.DB
}

func NewDBIdentityLookup(db *gorm.DB) *DBIdentityLookup {
	return &DBIdentityLookup{DB: db}
}

func (l *DBIdentityLookup) Username(userID, fallback string) string {
	var user models.DuelUser
	err := l.DB.Select("username").
		Where("external_user_id = ?", userID).
		First(&user).Error
	if err != nil || user.Username == "" {
		return fallback
	}
	return user.Username
}

// NullIdentityLookup is the no-identity-service default. Every lookup returns
// the fallback placeholder.
type NullIdentityLookup struct{}

func (NullIdentityLookup) Username(_, fallback string) string { return fallback }
