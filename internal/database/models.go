package database

// Notification is one row of the release notification log.
type Notification struct {
	ID          string `gorm:"primaryKey"`
	Repo        string `gorm:"not null;index"`
	PreviousTag string
	Tag         string `gorm:"not null"`
	Status      string `gorm:"not null;default:sent"`
	Error       string
	CreatedAt   int64 `gorm:"not null;index"`
}
