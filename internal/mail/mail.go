// Package mail delivers one-time passcodes by email.
package mail

import (
	"context"
	"fmt"
	"html"
	"time"
)

// OTPMessage is one passcode email. Code is never logged.
type OTPMessage struct {
	To      string
	Code    string
	Purpose string
	TTL     time.Duration
}

// Transport sends passcode emails. A returned error means the message was not accepted for delivery.
type Transport interface {
	SendOTP(ctx context.Context, msg OTPMessage) error
}

var purposeLabels = map[string]string{
	"signup":          "finish creating your account",
	"login":           "sign in",
	"forgot_password": "reset your password",
}

// renderOTPBody returns the HTML body for msg.
func renderOTPBody(msg OTPMessage) string {
	action, ok := purposeLabels[msg.Purpose]
	if !ok {
		action = "continue"
	}
	minutes := int(msg.TTL.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf(
		`<p>Use this code to %s:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>It expires in %d minutes. If you did not request it, ignore this email.</p>`,
		action, html.EscapeString(msg.Code), minutes,
	)
}
