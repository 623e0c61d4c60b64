package httpapi

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/septivank/meter-field-ops/internal/auth"
	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/route"
)

// DeviceTokenValidator accepts DEV-XXXXX device tokens
var DeviceTokenValidator = func(fl validator.FieldLevel) bool {
	return auth.IsDeviceToken(fl.Field().String())
}

// ReadingDayValidator accepts the reading day codes
var ReadingDayValidator = func(fl validator.FieldLevel) bool {
	return route.IsReadingDay(fl.Field().String())
}

// NewValidate returns a validator with the custom tags registered
func NewValidate() (*validator.Validate, error) {
	validate := validator.New()
	if err := validate.RegisterValidation("devicetoken", DeviceTokenValidator); err != nil {
		return nil, err
	}
	if err := validate.RegisterValidation("readingday", ReadingDayValidator); err != nil {
		return nil, err
	}
	return validate, nil
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
	DeviceID string `json:"device_id" validate:"omitempty,devicetoken"`
}

type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	DeviceID  string         `json:"device_id"`
	User      db.UserAccount `json:"user"`
}

type RouteQuery struct {
	Officer string `validate:"required,max=64"`
	Day     string `validate:"required,readingday"`
}

type EntryRequest struct {
	Text string `json:"text" validate:"max=20000"`
}

type SettleRequest struct {
	IDs []string `json:"idpels" validate:"required,min=1,max=5000,dive,required,max=32"`
}

type SettleResponse struct {
	Settled int `json:"settled"`
}

type SecretRequest struct {
	Secret string `json:"secret" validate:"required,min=3,max=128"`
}

type ArrearsResponse struct {
	Arrears []db.Arrear `json:"arrears"`
	Count   int         `json:"count"`
	Total   int64       `json:"total"`
}
