package auth

import (
	"context"

	"github.com/google/uuid"
)

// AccessScope captures who is asking. Every domain query is narrowed through
// it: patients see their own records, doctors see records assigned to them,
// staff and above see everything their role middleware already admitted.
type AccessScope struct {
	UserID uuid.UUID
	Role   string
}

// roleRank orders roles from least to most privileged. When a token carries
// several roles the widest one wins.
var roleRank = map[string]int{
	RolePatient: 1,
	RoleDoctor:  2,
	RoleStaff:   3,
	RoleManager: 4,
	RoleAdmin:   5,
}

// ScopeFromContext derives the caller's access scope from the values the auth
// middleware placed on the request context. An unknown or missing role scopes
// the caller down to patient-level visibility.
func ScopeFromContext(ctx context.Context) AccessScope {
	id, _ := uuid.Parse(UserIDFromContext(ctx))

	role := RolePatient
	best := 0
	for _, r := range RolesFromContext(ctx) {
		if rank, ok := roleRank[r]; ok && rank > best {
			best = rank
			role = r
		}
	}

	return AccessScope{UserID: id, Role: role}
}

// Unrestricted reports whether the caller may see every row. The route-level
// role middleware has already gated the capability itself.
func (s AccessScope) Unrestricted() bool {
	switch s.Role {
	case RoleStaff, RoleManager, RoleAdmin:
		return true
	}
	return false
}

func (s AccessScope) IsPatient() bool { return s.Role == RolePatient }

func (s AccessScope) IsDoctor() bool { return s.Role == RoleDoctor }

// CanAccessOwn reports whether the caller is the given party. Used for
// detail reads where a patient or doctor fetches a single record.
func (s AccessScope) CanAccessOwn(ownerID uuid.UUID) bool {
	return s.Unrestricted() || s.UserID == ownerID
}
