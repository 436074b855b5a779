package models

import "gorm.io/gorm"

type Review struct {
	gorm.Model
	Rating   int    `gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Comment  string
	UserID   uint `gorm:"not null;uniqueIndex:uq_user_course_review"`
	CourseID uint `gorm:"not null;uniqueIndex:uq_user_course_review"`

	User User
}
