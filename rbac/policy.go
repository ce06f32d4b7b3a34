package rbac

// Action names an operation subject to authorization.
type Action string

const (
	// ActionListAccounts lists every account. Admin only.
	ActionListAccounts Action = "accounts.list"
	// ActionChangeRole changes another account's role. Admin only.
	ActionChangeRole Action = "accounts.change_role"
	// ActionDeleteAccount deletes another account. Admin only.
	ActionDeleteAccount Action = "accounts.delete"
	// ActionChangeStatus enables or disables another account. Admin only.
	ActionChangeStatus Action = "accounts.change_status"

	// ActionViewSelf reads the caller's own account.
	ActionViewSelf Action = "self.view"
	// ActionLogout revokes the caller's current token.
	ActionLogout Action = "self.logout"
	// ActionLogoutAll revokes every token issued to the caller so far.
	ActionLogoutAll Action = "self.logout_all"
)

// restricted assigns a bit to every action that is not open to all roles.
// Actions absent from this table are permitted to any valid role.
var restricted = map[Action]int{
	ActionListAccounts:  0,
	ActionChangeRole:    1,
	ActionDeleteAccount: 2,
	ActionChangeStatus:  3,
}

var grants = map[Role]mask{
	RoleMember: 0,
	RoleAdmin: mask(0).with(
		restricted[ActionListAccounts],
		restricted[ActionChangeRole],
		restricted[ActionDeleteAccount],
		restricted[ActionChangeStatus],
	),
}

// Authorize reports whether role may perform action. It is a pure function
// of its arguments: the table is fixed at compile time and no I/O happens.
// Unknown roles are denied everything.
func Authorize(role Role, action Action) bool {
	granted, ok := grants[role]
	if !ok {
		return false
	}
	bit, ok := restricted[action]
	if !ok {
		return true
	}
	return granted.has(bit)
}

// AdminOnly reports whether action is restricted to administrators.
func AdminOnly(action Action) bool {
	_, ok := restricted[action]
	return ok
}
