package domain

// Role is the cleaner's quality tier.
type Role string

const (
	RoleStandard Role = "Standard"
	RolePremium  Role = "Premium"
)

// ContractClass gates which apartment types a cleaner may service.
type ContractClass string

const (
	ContractA      ContractClass = "A"
	ContractB      ContractClass = "B"
	ContractC      ContractClass = "C"
	ContractOnCall ContractClass = "on-call"
)

// Cleaner is a worker eligible for the day's roster.
type Cleaner struct {
	ID                  int
	Name                string
	Role                Role
	Contract            ContractClass
	CanDoStraordinaria  bool
	PreferredCustomers  []int
	AccumulatedHours    float64
	// DayStartMinute is the cleaner's day-start time in minutes-from-midnight.
	DayStartMinute int
	// LastPosition is the cleaner's last-known position, if any. Phase 2
	// copies it into its own accumulator and updates only that copy after
	// each assignment; this field itself is never modified.
	LastPosition *Coordinates
}

// PrefersClient reports whether clientID appears in the cleaner's preferred
// customer list.
func (c Cleaner) PrefersClient(clientID int) bool {
	for _, id := range c.PreferredCustomers {
		if id == clientID {
			return true
		}
	}
	return false
}

// AcceptsApartmentType implements the contract/apartment-type compatibility
// table: "on-call" and C accept everything, B accepts {A, B}, A accepts
// only A.
func (c Cleaner) AcceptsApartmentType(apt ApartmentType) bool {
	switch c.Contract {
	case ContractOnCall, ContractC:
		return true
	case ContractB:
		return apt == ApartmentA || apt == ApartmentB
	case ContractA:
		return apt == ApartmentA
	default:
		return false
	}
}
