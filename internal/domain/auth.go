package domain

import "time"

// SubjectType differentiates stored accounts from the configured administrator.
type SubjectType string

const (
	SubjectTypeAccount SubjectType = "ACCOUNT"
	SubjectTypeAdmin   SubjectType = "ADMIN"
)

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
