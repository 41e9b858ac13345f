package users

// User represents a user account. Exactly one role at all times; new accounts
// start at the lowest-privilege tier.
type User struct {
	ID           int64
	FirstName    string
	SecondName   string
	NickName     string
	Email        string
	PasswordHash string
	RoleID       int
}

// NewUser carries the fields required to create an account.
type NewUser struct {
	FirstName  string
	SecondName string
	NickName   string
	Email      string
	Password   string
}
