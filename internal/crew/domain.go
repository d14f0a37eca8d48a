// Package crew manages seafarer records for the crewing department.
package crew

import (
	"errors"
	"time"
)

// Seafarer is one crew member record.
type Seafarer struct {
	ID           int64
	FullName     string
	Rank         string
	Nationality  string
	PassportNo   string
	DateOfBirth  time.Time
	VesselName   string
	SignOnDate   *time.Time
	SignOffDate  *time.Time
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	ErrNotFound   = errors.New("crew: seafarer not found")
	ErrValidation = errors.New("crew: invalid input")
)
