package model

import "time"

type Role string

const (
	RolePatient    Role = "patient"
	RoleDoctor     Role = "doctor"
	RoleResearcher Role = "researcher"
)

// ValidRole reports whether r is one of the registrable roles.
func ValidRole(r Role) bool {
	switch r {
	case RolePatient, RoleDoctor, RoleResearcher:
		return true
	}
	return false
}

// IsClinical reports whether the role receives the clinical explanation
// template rather than the plain-language one.
func (r Role) IsClinical() bool {
	return r == RoleDoctor || r == RoleResearcher
}

type User struct {
	Id       int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Username string `json:"username" gorm:"unique"`
	Password string `json:"-"`
	Role     Role   `json:"role"`
}

// Scan is one classified upload. Explanation is append-only: question and
// answer pairs are concatenated below the initial status sentence, prior
// content is never replaced.
type Scan struct {
	Id          int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId      int       `json:"userId" gorm:"index"`
	ImagePath   string    `json:"imagePath"`
	Prediction  string    `json:"prediction"`
	Confidence  float64   `json:"confidence"` // percent, 0-100
	Explanation string    `json:"explanation"`
	CreatedAt   time.Time `json:"createdAt"`
}
