package domain

import (
	"encoding/json"
	"time"
)

// ChannelSMS is the only delivery channel this service uses.
const ChannelSMS = "sms"

// Dispatch is the delivery provider's acknowledgment of a new verification.
// Field names follow the Twilio Verify resource. When Raw holds the provider's
// response body it is what gets encoded, so clients see it byte for byte.
type Dispatch struct {
	SID         string    `json:"sid"`
	ServiceSID  string    `json:"service_sid,omitempty"`
	AccountSID  string    `json:"account_sid,omitempty"`
	To          string    `json:"to"`
	Channel     string    `json:"channel"`
	Status      string    `json:"status"`
	Valid       bool      `json:"valid"`
	DateCreated time.Time `json:"date_created"`
	DateUpdated time.Time `json:"date_updated"`

	Raw json.RawMessage `json:"-"`
}

func (d Dispatch) MarshalJSON() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	type plain Dispatch
	return json.Marshal(plain(d))
}

// VerificationCheck is the provider's verdict on a submitted code.
type VerificationCheck struct {
	SID     string `json:"sid,omitempty"`
	To      string `json:"to"`
	Channel string `json:"channel"`
	Status  string `json:"status"` // "pending" | "approved" | "canceled" | "expired"
	Valid   bool   `json:"valid"`
}

// OTPChallenge is a pending code held by the self-hosted provider.
// PK: phone_number, SK: channel. ExpiresAt is a Unix timestamp used as TTL.
type OTPChallenge struct {
	PhoneNumber string    `json:"phone_number" dynamodbav:"phone_number" bson:"phone_number"`
	Channel     string    `json:"channel" dynamodbav:"channel" bson:"channel"`
	SID         string    `json:"sid" dynamodbav:"sid" bson:"sid"`
	CodeHash    string    `json:"-" dynamodbav:"code_hash" bson:"code_hash"`
	Checks      int       `json:"checks" dynamodbav:"checks" bson:"checks"`
	ExpiresAt   int64     `json:"expires_at" dynamodbav:"expires_at" bson:"expires_at"` // TTL (Unix seconds)
	ExpireAt    time.Time `json:"-" dynamodbav:"-" bson:"expire_at"`                    // Mongo TTL index field
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
}
