package model

// User represents an application user record as stored in the
// `users` table.  The seat inventory only needs the identity of the
// caller; the password hash and role are consumed by the login flow.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – name of the role (e.g. CUSTOMER or OWNER).
//  IsActive     – whether the account is active.
type User struct {
	ID           uint64 // users.id
	Email        string // users.email
	PasswordHash string // users.password_hash
	Role         string // users.role
	IsActive     bool   // users.is_active
}
