package models

import "time"

type Booking struct {
	ID           int64     `json:"id"`
	MemberID     int64     `json:"memberId"`
	MemberName   string    `json:"memberName"`
	MemberAvatar string    `json:"memberAvatar"`
	MemberRole   string    `json:"role"`
	DeskID       string    `json:"deskId"`
	Zone         string    `json:"zone"`
	Level        int       `json:"level"`
	Status       string    `json:"status"` // Pending, Accepted
	BookingDate  time.Time `json:"bookingDate"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BookingStats aggregates the ledger for the analytics screen.
type BookingStats struct {
	Total         int         `json:"total"`
	Accepted      int         `json:"accepted"`
	Pending       int         `json:"pending"`
	AcceptedRatio int         `json:"acceptedRatio"` // percent of decided+pending that ended Accepted
	ByWeekday     map[int]int `json:"byWeekday"`     // time.Weekday -> accepted bookings
}
