package models

// User is a dashboard operator account. Usernames are stored lowercased.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
