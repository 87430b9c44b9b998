package session

import "time"

// Role is one of the closed set of capability tags assigned to a member.
type Role string

// Roles recognised by the society.
const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// UserRecord is the identity returned by the ledger API at login. It is
// authoritative only as of the last fetch; there is no push channel
// updating it.
type UserRecord struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Role        Role      `json:"role"`
	Shares      int       `json:"shares"`
	JoiningDate time.Time `json:"joiningDate"`
}

// UserPatch carries the fields a profile edit may change. Nil fields are
// left untouched by the merge.
type UserPatch struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Shares *int    `json:"shares,omitempty"`
}

func (p UserPatch) apply(u UserRecord) UserRecord {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Shares != nil {
		u.Shares = *p.Shares
	}
	return u
}
