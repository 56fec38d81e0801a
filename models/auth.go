package models

// AuthenticatedUser is the identity extracted from a validated bearer token.
// It is passed explicitly into every state-transition operation; services
// never read ambient session state.
type AuthenticatedUser struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Name   string      `json:"name"`
	Groups []UserGroup `json:"groups"`
}

// HasGroup reports whether the user belongs to the given group
func (u *AuthenticatedUser) HasGroup(group UserGroup) bool {
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is a platform administrator
func (u *AuthenticatedUser) IsAdmin() bool {
	return u.HasGroup(UserGroupAdmin)
}

// IsBroker reports whether the user is a broker
func (u *AuthenticatedUser) IsBroker() bool {
	return u.HasGroup(UserGroupBroker)
}
