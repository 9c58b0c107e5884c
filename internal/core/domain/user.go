package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role is the on-chain role enumeration. Stored and transmitted as a small
// integer; values outside the enumeration are rejected, never defaulted.
type Role uint8

const (
	RoleStudent Role = 0
	RoleTeacher Role = 1
)

// Valid reports whether r is part of the known enumeration.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTeacher:
		return "teacher"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// Landing is the page a client redirects to after a successful login.
func (r Role) Landing() string {
	if r == RoleStudent {
		return "/student.html"
	}
	return "/teacher.html"
}

// ParseRole accepts either the numeric form ("0", "1") or the name.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "student":
		return RoleStudent, nil
	case "1", "teacher":
		return RoleTeacher, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// AuthorizationRecord binds an identity to a role and a commitment of its
// secret. A record is either absent (Exists=false) or present with one role.
type AuthorizationRecord struct {
	Identity         Identity  `json:"identity"`
	DisplayName      string    `json:"display_name"`
	SecretCommitment string    `json:"-"`
	Role             Role      `json:"role"`
	Exists           bool      `json:"exists"`
	CreatedAt        time.Time `json:"created_at"`
}
