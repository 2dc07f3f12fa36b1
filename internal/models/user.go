package models

import "github.com/golang-jwt/jwt/v5"

// Role identifies the caller's position in the review pipeline.
type Role string

const (
	RoleSubmitter Role = "SUBMITTER"
	RoleModerator Role = "MODERATOR"
	RoleAuthority Role = "AUTHORITY"
)

// JWTClaims represents the verified identity of a caller. Credential
// issuance lives in an external collaborator; this service only parses
// and trusts the signed claims.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Email  string `json:"email"`

	// Submitter scope: the single college/department records are
	// attributed to.
	College    string `json:"college,omitempty"`
	Department string `json:"department,omitempty"`

	// Moderator scope: assigned review domains.
	Colleges    []string `json:"colleges,omitempty"`
	Departments []string `json:"departments,omitempty"`

	jwt.RegisteredClaims
}

// SubmitterContextOf derives the record attribution context from claims.
func (c *JWTClaims) SubmitterContextOf() SubmitterContext {
	return SubmitterContext{
		SubmittedBy: c.UserID,
		College:     c.College,
		Department:  c.Department,
	}
}

// CanModerate reports whether the moderator's assignment covers the
// record's college and department. Both must match.
func (c *JWTClaims) CanModerate(college, department string) bool {
	return contains(c.Colleges, college) && contains(c.Departments, department)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
