package rbac

type Role string
type UserType string
type Action string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

const (
	TypeEntrepreneur UserType = "entrepreneur"
	TypeInvestor     UserType = "investor"
)

const (
	ActionRead     Action = "read"
	ActionComment  Action = "comment"
	ActionMessage  Action = "message"
	ActionPublish  Action = "publish"  // create and manage listings
	ActionInvest   Action = "invest"   // express interest in a listing
	ActionModerate Action = "moderate"
)

// Can reports whether a role/user-type pair may perform an action.
// Admins may do everything. Publishing is restricted to entrepreneurs
// and expressing interest to investors; everything else is open to members.
func Can(role Role, userType UserType, action Action) bool {
	if role == RoleAdmin {
		return true
	}
	if role != RoleMember {
		return false
	}
	switch action {
	case ActionRead, ActionComment, ActionMessage:
		return true
	case ActionPublish:
		return userType == TypeEntrepreneur
	case ActionInvest:
		return userType == TypeInvestor
	case ActionModerate:
		return false
	default:
		return false
	}
}

func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleMember, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}

func NormalizeType(userType string) UserType {
	switch UserType(userType) {
	case TypeEntrepreneur, TypeInvestor:
		return UserType(userType)
	default:
		return TypeEntrepreneur
	}
}
