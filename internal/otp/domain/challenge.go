package domain

import (
	"encoding/json"
	"time"
)

// Purpose scopes a challenge to one flow. A code issued for one purpose cannot complete another.
type Purpose string

const (
	PurposeSignup         Purpose = "signup"
	PurposeLogin          Purpose = "login"
	PurposeForgotPassword Purpose = "forgot_password"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeSignup, PurposeLogin, PurposeForgotPassword:
		return true
	}
	return false
}

// Payload carries pending registration fields on a signup challenge so the account can be
// created in the same step that consumes the challenge.
type Payload struct {
	Username       string `json:"username"`
	PasswordHash   string `json:"passwordHash"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Challenge is a one-time passcode challenge (otp_challenges table). At most one row exists per
// (Email, Purpose); re-issuing overwrites it with a new ID.
type Challenge struct {
	ID         string
	Email      string
	Purpose    Purpose
	CodeHash   string
	Payload    *Payload
	Attempts   int
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Live reports whether the challenge is neither consumed nor expired at now.
func (c *Challenge) Live(now time.Time) bool {
	return c.ConsumedAt == nil && !c.Expired(now)
}

// MarshalPayload encodes p for the payload column; nil stays nil.
func MarshalPayload(p *Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// UnmarshalPayload decodes the payload column; empty input yields nil.
func UnmarshalPayload(b []byte) (*Payload, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
