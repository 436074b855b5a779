package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Name             string `gorm:"not null"`
	Email            string `gorm:"uniqueIndex;not null"` // stored lower-cased
	PasswordHash     string `gorm:"not null"`
	ProfileImageName string // object name in the media store, not a URL

	CreatedCourses []Course     `gorm:"foreignKey:CreatorID"`
	Enrollments    []Enrollment `gorm:"foreignKey:LearnerID"`
	Reviews        []Review     `gorm:"foreignKey:UserID"`
	Payments       []Payment    `gorm:"foreignKey:UserID"`
}
