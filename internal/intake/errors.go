package intake

import "errors"

// Intake errors.
var (
	ErrIntakeNotFound        = errors.New("intake not found")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrNothingToUpdate       = errors.New("no fields to update")
	ErrInvalidPhone          = errors.New("phone number looks invalid, update it and try again")
	ErrSMSDeliveryFailed     = errors.New("sms could not be sent")
	ErrNotificationsDisabled = errors.New("sms notifications are disabled")
)
