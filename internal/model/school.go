package model

import "time"

// SchoolInfo is the school profile
type SchoolInfo struct {
	ID           int64     `json:"id"`
	SchoolName   string    `json:"school_name"`
	Address      *string   `json:"address"`
	Phone        *string   `json:"phone"`
	Email        *string   `json:"email"`
	Principal    *string   `json:"principal"`
	AcademicYear *string   `json:"academic_year"`
	About        *string   `json:"about"`
	Vision       *string   `json:"vision"`
	Mission      *string   `json:"mission"`
	LogoURL      *string   `json:"logo_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SchoolInfoInput struct {
	SchoolName   string  `json:"school_name" validate:"required,max=200"`
	Address      *string `json:"address"`
	Phone        *string `json:"phone" validate:"omitempty,max=20"`
	Email        *string `json:"email" validate:"omitempty,email,max=100"`
	Principal    *string `json:"principal" validate:"omitempty,max=100"`
	AcademicYear *string `json:"academic_year" validate:"omitempty,max=20"`
	About        *string `json:"about"`
	Vision       *string `json:"vision"`
	Mission      *string `json:"mission"`
	LogoURL      *string `json:"logo_url" validate:"omitempty,max=500"`
}
