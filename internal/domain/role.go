package domain

// Role is a per-channel authority level.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleOp     Role = "OP"
	RoleVoice  Role = "VOICE"
	RoleMember Role = "MEMBER"
)

var roleRanks = map[Role]int{
	RoleOwner:  5,
	RoleAdmin:  4,
	RoleOp:     3,
	RoleVoice:  2,
	RoleMember: 1,
}

// RoleRank returns the numeric rank of a role. Unknown roles rank zero,
// below MEMBER.
func RoleRank(r Role) int {
	return roleRanks[r]
}

// HasRoleAtLeast reports whether r meets or exceeds min in the role lattice.
// Unknown or empty roles never satisfy any minimum.
func HasRoleAtLeast(r, min Role) bool {
	rank := RoleRank(r)
	return rank > 0 && rank >= RoleRank(min)
}

// RoleFromMode maps a moderation mode verb to the role it grants. Demotion
// verbs map to MEMBER.
func RoleFromMode(mode string) (Role, bool) {
	switch mode {
	case "op":
		return RoleOp, true
	case "deop":
		return RoleMember, true
	case "voice":
		return RoleVoice, true
	case "devoice":
		return RoleMember, true
	default:
		return "", false
	}
}
