package domain

type AccessLevel int

const (
	LevelUser AccessLevel = iota
	LevelAdmin
	LevelBoss
)

func (r UserRole) Level() AccessLevel {
	switch r {
	case RoleBoss:
		return LevelBoss
	case RoleAdmin:
		return LevelAdmin
	default:
		return LevelUser
	}
}

// Authorize fails closed: a missing user is never allowed.
func Authorize(u *User, required AccessLevel) error {
	if u == nil {
		return ErrForbidden
	}
	if u.Role.Level() < required {
		return ErrForbidden
	}
	return nil
}
