package domain

import "time"

// MountType describes how a device was installed on site.
type MountType string

// Mount types.
const (
	MountTypeWall  MountType = "DUVAR"
	MountTypeStand MountType = "SEHPA"
)

// IsValid checks if the mount type is valid.
func (m MountType) IsValid() bool {
	switch m {
	case MountTypeWall, MountTypeStand:
		return true
	}
	return false
}

// Installation is an on-site job assigned to one or more field crew members.
type Installation struct {
	ID           string     `json:"id"`
	WorkOrderNo  string     `json:"work_order_no"`
	CustomerName string     `json:"customer_name"`
	Model        string     `json:"model"`
	Phone        string     `json:"phone"`
	Address      string     `json:"address"`
	ServiceType  string     `json:"service_type"`
	Assignees    []string   `json:"assignees"`
	Closed       bool       `json:"closed"`
	MountType    *MountType `json:"mount_type,omitempty"`
	PhotoURLs    []string   `json:"photo_urls"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsAssignedTo reports whether username is on the crew.
func (i *Installation) IsAssignedTo(username string) bool {
	for _, a := range i.Assignees {
		if a == username {
			return true
		}
	}
	return false
}
