package domain

import "time"

// User is the onboarding record. PhoneNumber is unique and permanent;
// Email is unique once set.
type User struct {
	UserID      string    `json:"id" dynamodbav:"user_id" bson:"_id"`
	PhoneNumber string    `json:"phone_number" dynamodbav:"phone_number" bson:"phone_number"`
	Email       *string   `json:"email,omitempty" dynamodbav:"email,omitempty" bson:"email,omitempty"`
	FirstName   string    `json:"first_name,omitempty" dynamodbav:"first_name,omitempty" bson:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty" dynamodbav:"last_name,omitempty" bson:"last_name,omitempty"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated,omitzero" dynamodbav:"updated_at" bson:"updated_at,omitempty"`
}

type RequestOTPRequest struct {
	Number string `json:"number" validate:"required"`
}

type VerifyOTPRequest struct {
	OTP        string `json:"otp" validate:"required"`
	UserNumber string `json:"userNumber" validate:"required"`
}

type SetEmailRequest struct {
	UserID string `json:"userId" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

type SetNameRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}
