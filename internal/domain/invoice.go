package domain

import "time"

// InvoiceOwner names the record an invoice image is attached to.
type InvoiceOwner string

// Invoice owners.
const (
	InvoiceOwnerInstallation InvoiceOwner = "installation"
	InvoiceOwnerIntake       InvoiceOwner = "intake"
)

// Invoice is a customer-uploaded invoice image. Image is a data URL.
type Invoice struct {
	OwnerID    string       `json:"owner_id"`
	Owner      InvoiceOwner `json:"owner"`
	Image      string       `json:"image"`
	UploadedAt time.Time    `json:"uploaded_at"`
}
