package model

import "time"

// Student is a graduation record
type Student struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	NISN         string    `json:"nisn"`
	Class        *string   `json:"class"`
	Graduated    bool      `json:"graduated"`
	AverageScore *float64  `json:"average_score"`
	Notes        *string   `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type StudentInput struct {
	Name         string   `json:"name" validate:"required,min=2,max=100,personname"`
	NISN         string   `json:"nisn" validate:"required,min=10,max=20,digits"`
	Class        *string  `json:"class" validate:"omitempty,max=10"`
	Graduated    *bool    `json:"graduated" validate:"required"`
	AverageScore *float64 `json:"average_score" validate:"omitempty,gte=0,lte=100"`
	Notes        *string  `json:"notes" validate:"omitempty,max=1000"`
}

type StudentFilter struct {
	Search string
	Page   int
	Limit  int
}

// GraduationStats summarises graduation results
type GraduationStats struct {
	TotalStudents  int     `json:"total_students"`
	Graduated      int     `json:"graduated"`
	NotGraduated   int     `json:"not_graduated"`
	AverageScore   float64 `json:"average_score"`
	GraduationRate int     `json:"graduation_rate"`
}
