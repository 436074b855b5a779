package models

import "gorm.io/gorm"

type Category struct {
	gorm.Model
	// uniqueness is enforced case-insensitively by an expression index on
	// LOWER(name), created in Migrate
	Name        string `gorm:"not null"`
	Description string

	Courses []Course `gorm:"foreignKey:CategoryID"`
}
