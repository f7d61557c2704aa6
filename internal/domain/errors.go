package domain

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrRateLimited  = errors.New("rate limit reached")
	ErrGateway      = errors.New("subscription gateway error")
	ErrNotFound     = errors.New("not found")
	ErrNotConfirmed = errors.New("claim not confirmed")
	ErrWidgetGone   = errors.New("widget no longer in catalog")
	ErrDelivery     = errors.New("delivery failed")
)
