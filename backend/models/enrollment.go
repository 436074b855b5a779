package models

import (
	"math"

	"gorm.io/gorm"
)

type Enrollment struct {
	gorm.Model
	LearnerID        uint  `gorm:"not null;uniqueIndex:uq_learner_course"`
	CourseID         uint  `gorm:"not null;uniqueIndex:uq_learner_course"`
	LessonsCompleted int   `gorm:"not null;default:0"` // size of the completions set
	TimeSpentSeconds int   `gorm:"not null;default:0"`
	PaymentID        *uint `gorm:"uniqueIndex"` // nil for free courses

	Learner     User    `gorm:"foreignKey:LearnerID"`
	Course      Course
	Payment     *Payment
	Completions []LessonCompletion `gorm:"constraint:OnDelete:CASCADE"`
}

// LessonCompletion records one completed lesson per enrollment, so marking
// the same lesson twice cannot inflate progress.
type LessonCompletion struct {
	gorm.Model
	EnrollmentID uint `gorm:"not null;uniqueIndex:uq_enrollment_lesson"`
	LessonID     uint `gorm:"not null;uniqueIndex:uq_enrollment_lesson"`
}

// ProgressPercentage is round(completed/total*100), 0 for a course with no
// lessons.
func (e *Enrollment) ProgressPercentage(totalLessons int) int {
	if totalLessons <= 0 {
		return 0
	}
	return int(math.Round(float64(e.LessonsCompleted) / float64(totalLessons) * 100))
}
