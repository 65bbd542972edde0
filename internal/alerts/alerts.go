// Package alerts stores the user-facing security alerts raised by
// transaction analysis, blocking and phishing checks.
package alerts

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("alerts: not found")

// Type classifies an alert.
type Type string

const (
	TypeThreat   Type = "threat"
	TypePhishing Type = "phishing"
	TypeWarning  Type = "warning"
	TypeInfo     Type = "info"
)

// Valid reports whether t is a known alert type.
func (t Type) Valid() bool {
	switch t {
	case TypeThreat, TypePhishing, TypeWarning, TypeInfo:
		return true
	}
	return false
}

// Alert is one notification shown to the wallet owner.
type Alert struct {
	ID            string `json:"id"`
	Type          Type   `json:"type"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	Timestamp     int64  `json:"timestamp"` // unix millis
	Read          bool   `json:"read"`
	TransactionID string `json:"transactionId,omitempty"`
}

// Input is the caller-supplied part of a new alert.
type Input struct {
	Type          Type
	Title         string
	Message       string
	TransactionID string
}

// Store persists alerts. List returns newest first.
type Store interface {
	Create(ctx context.Context, a *Alert) error
	Get(ctx context.Context, id string) (*Alert, error)
	List(ctx context.Context) ([]*Alert, error)
	MarkRead(ctx context.Context, id string) (*Alert, error)
	MarkAllRead(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}
