package models

import (
	"sort"
	"time"
)

// WaitingStatus is the state of a waiting-list entry.
type WaitingStatus string

const (
	WaitingStatusWaiting  WaitingStatus = "waiting"
	WaitingStatusNotified WaitingStatus = "notified"
)

// Contact identifies who gets told about a freed slot.
type Contact struct {
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

// WaitingListEntry is unmet demand for a time window on a date.
type WaitingListEntry struct {
	ID                     int64         `json:"id"`
	Date                   time.Time     `json:"date"`
	FromTime               string        `json:"from_time"`
	ToTime                 string        `json:"to_time"`
	ServiceDurationMinutes int           `json:"service_duration_minutes"`
	ServiceName            string        `json:"service_name"`
	Status                 WaitingStatus `json:"status"`
	Contact                Contact       `json:"contact"`
	MatchedTime            string        `json:"matched_time,omitempty"`
	NotifiedAt             *time.Time    `json:"notified_at,omitempty"`
	CreatedAt              time.Time     `json:"created_at"`
}

// SortByRegistration orders entries first-registered-first, ID breaking ties.
func SortByRegistration(entries []WaitingListEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
