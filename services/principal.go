package services

// Role of an authenticated caller
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Principal is the authenticated caller of a service operation
type Principal struct {
	ID   string
	Role Role
}

// ParseRole maps a token claim to a Role. Anything unknown is a customer.
func ParseRole(raw string) Role {
	if Role(raw) == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Authorize is the single role check used by every service operation.
// An admin satisfies any required role.
func Authorize(p Principal, required Role) error {
	if p.ID == "" {
		return newError(CodeForbidden, "Authentication required")
	}
	if p.Role == required || p.IsAdmin() {
		return nil
	}
	return newError(CodeForbidden, "Insufficient permissions to access this resource")
}

// AuthorizeOwner allows admins and the principal identified by ownerID
func AuthorizeOwner(p Principal, ownerID string) error {
	if err := Authorize(p, RoleCustomer); err != nil {
		return err
	}
	if p.IsAdmin() || p.ID == ownerID {
		return nil
	}
	return newError(CodeForbidden, "You do not have permission to access this resource")
}
