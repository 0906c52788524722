package model

type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalGuest PrincipalKind = "guest"
)

// 検証済みtokenから復元した「誰のリクエストか」
// KindがUserならUserID、GuestならInvitadoIDが入る
type Principal struct {
	Kind       PrincipalKind
	UserID     int64
	InvitadoID string
	Role       Role
	JTI        string
}

func (p Principal) IsUser() bool {
	return p.Kind == PrincipalUser
}

func (p Principal) IsGuest() bool {
	return p.Kind == PrincipalGuest
}
