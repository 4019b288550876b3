package domain

import "time"

// Role is the name of one of the fixed clinic roles.
type Role string

const (
	RoleDoctor       Role = "Medecin"
	RolePatient      Role = "Patient"
	RoleReceptionist Role = "Secretaire"
)

// ReceptionistQuota caps how many users may hold RoleReceptionist.
const ReceptionistQuota = 2

// Roles lists every role seeded into the role registry.
var Roles = []Role{RoleDoctor, RolePatient, RoleReceptionist}

// ParseRole returns the Role named s, or false if s is not a known role.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// RoleRecord is a persisted role registry entry.
type RoleRecord struct {
	ID        string    `json:"id"`
	Name      Role      `json:"name"`
	Holders   int64     `json:"-"`
	CreatedAt time.Time `json:"-"`
}
