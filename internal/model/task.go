package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProLinkType ties a routine task to an in-app tracker. ProLinkNone marks a
// regular task.
type ProLinkType string

const (
	ProLinkNone    ProLinkType = ""
	ProLinkWater   ProLinkType = "water"
	ProLinkJournal ProLinkType = "journal"
	ProLinkAudio   ProLinkType = "audio"
	ProLinkFasting ProLinkType = "fasting"
	ProLinkPeriod  ProLinkType = "period"
)

func (p ProLinkType) Valid() bool {
	switch p {
	case ProLinkNone, ProLinkWater, ProLinkJournal, ProLinkAudio, ProLinkFasting, ProLinkPeriod:
		return true
	}
	return false
}

func ParseProLinkType(s string) (ProLinkType, error) {
	if p := ProLinkType(s); p.Valid() {
		return p, nil
	}
	return "", fmt.Errorf("unknown pro link type %q", s)
}

type Task struct {
	ID             uuid.UUID   `json:"id"`
	UserID         uuid.UUID   `json:"user_id"`
	Title          string      `json:"title"`
	Emoji          string      `json:"emoji"`
	ProLinkType    ProLinkType `json:"pro_link_type"`
	Active         bool        `json:"active"`
	CompletedToday bool        `json:"completed_today"`
	CreatedAt      time.Time   `json:"created_at"`
}
