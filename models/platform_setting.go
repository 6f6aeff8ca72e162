package models

import "time"

// PlatformSetting is a key/value row backing the admin settings endpoint.
type PlatformSetting struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Key       string    `gorm:"uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// DefaultSettings seeds settings the platform expects to exist.
var DefaultSettings = []PlatformSetting{
	{Key: "points_per_gram", Value: "1"},
	{Key: "nearby_default_radius_km", Value: "10"},
	{Key: "notifications_retention_days", Value: "90"},
}
