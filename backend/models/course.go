package models

import "gorm.io/gorm"

type Course struct {
	gorm.Model
	Title             string  `gorm:"not null"`
	Description       string
	Price             float64 `gorm:"not null;default:0"`
	ThumbnailName     string  // object name in the media store
	DifficultyLevel   string  `gorm:"not null"` // beginner, intermediate, advanced
	Language          string  `gorm:"not null"`
	EstimatedDuration int     `gorm:"not null;default:0"` // running total of lesson durations, seconds

	CreatorID  uint `gorm:"not null"`
	CategoryID uint `gorm:"not null"`

	Creator     User
	Category    Category
	Lessons     []Lesson     `gorm:"constraint:OnDelete:CASCADE"`
	Enrollments []Enrollment `gorm:"constraint:OnDelete:CASCADE"`
	Reviews     []Review     `gorm:"constraint:OnDelete:CASCADE"`
}
