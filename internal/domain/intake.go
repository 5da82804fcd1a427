package domain

import (
	"strconv"
	"strings"
	"time"
)

// IntakeStatus is the repair workflow stage of an intake record.
type IntakeStatus int

// Intake statuses.
const (
	IntakeStatusReceived        IntakeStatus = 1
	IntakeStatusWithTechnician  IntakeStatus = 2
	IntakeStatusAwaitingAction  IntakeStatus = 3
	IntakeStatusAwaitingParts   IntakeStatus = 4
	IntakeStatusSentToCenter    IntakeStatus = 5
	IntakeStatusReplacement     IntakeStatus = 6
	IntakeStatusRepairCompleted IntakeStatus = 7
	IntakeStatusDelivered       IntakeStatus = 8
	IntakeStatusReturned        IntakeStatus = 9
)

// intakeStatusNames are the canonical workshop labels.
var intakeStatusNames = map[IntakeStatus]string{
	IntakeStatusReceived:        "MÜŞTERI_KABUL",
	IntakeStatusWithTechnician:  "TEKNISYENE_VERİLDİ",
	IntakeStatusAwaitingAction:  "İŞLEM_BEKLİYOR",
	IntakeStatusAwaitingParts:   "PARÇA_BEKLİYOR",
	IntakeStatusSentToCenter:    "MERKEZE_SEVK",
	IntakeStatusReplacement:     "DEĞİŞİM",
	IntakeStatusRepairCompleted: "TAMİR_TAMAMLANDI",
	IntakeStatusDelivered:       "TESLİM_EDİLDİ",
	IntakeStatusReturned:        "İADE",
}

// intakeStatusAliases maps ASCII and lowercase spellings seen in older clients.
var intakeStatusAliases = map[string]IntakeStatus{
	"MUSTERI_KABUL":      IntakeStatusReceived,
	"MÜŞTERİ_KABUL":      IntakeStatusReceived,
	"TEKNISYENE_VERILDI": IntakeStatusWithTechnician,
	"ISLEM_BEKLIYOR":     IntakeStatusAwaitingAction,
	"PARCA_BEKLIYOR":     IntakeStatusAwaitingParts,
	"DEGISIM":            IntakeStatusReplacement,
	"TAMIR_TAMAMLANDI":   IntakeStatusRepairCompleted,
	"TESLIM_EDILDI":      IntakeStatusDelivered,
	"IADE":               IntakeStatusReturned,
}

// IsValid checks if the status is within 1..9.
func (s IntakeStatus) IsValid() bool {
	_, ok := intakeStatusNames[s]
	return ok
}

// Name returns the workshop label, or an empty string for unknown codes.
func (s IntakeStatus) Name() string {
	return intakeStatusNames[s]
}

// ParseIntakeStatus accepts a numeric code, a canonical label or a known alias.
func ParseIntakeStatus(value string) (IntakeStatus, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(value); err == nil {
		s := IntakeStatus(n)
		return s, s.IsValid()
	}
	for code, name := range intakeStatusNames {
		if value == name {
			return code, true
		}
	}
	s, ok := intakeStatusAliases[strings.ToUpper(value)]
	return s, ok
}

// AllIntakeStatuses returns every status in code order.
func AllIntakeStatuses() []IntakeStatus {
	return []IntakeStatus{
		IntakeStatusReceived,
		IntakeStatusWithTechnician,
		IntakeStatusAwaitingAction,
		IntakeStatusAwaitingParts,
		IntakeStatusSentToCenter,
		IntakeStatusReplacement,
		IntakeStatusRepairCompleted,
		IntakeStatusDelivered,
		IntakeStatusReturned,
	}
}

// Intake is a customer device drop-off tracked through repair.
// Phone holds the decrypted number in memory; it is encrypted at rest.
// SMSSent and SMSMessage are a read model updated only after confirmed delivery.
type Intake struct {
	ID                string       `json:"id"`
	CustomerName      string       `json:"customer_name"`
	Phone             string       `json:"phone"`
	DeviceModel       string       `json:"device_model"`
	ServiceType       string       `json:"service_type,omitempty"`
	Accessories       string       `json:"accessories"`
	Complaint         string       `json:"complaint"`
	Notes             string       `json:"notes,omitempty"`
	TechnicianNote    string       `json:"technician_note,omitempty"`
	RepairSlipNo      string       `json:"repair_slip_no,omitempty"`
	Status            IntakeStatus `json:"status"`
	StatusName        string       `json:"status_name"`
	PriceQuotePending bool         `json:"price_quote_pending"`
	SMSSent           bool         `json:"sms_sent"`
	SMSMessage        string       `json:"sms_message,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}
