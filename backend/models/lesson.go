package models

import "gorm.io/gorm"

type Lesson struct {
	gorm.Model
	CourseID       uint   `gorm:"not null"`
	Title          string `gorm:"not null"`
	Description    string
	VideoName      string // object name in the media store
	AssignmentName string // object name in the media store
	Duration       int    `gorm:"not null;default:0"` // seconds
}
