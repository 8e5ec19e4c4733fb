package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Permission is an access level on a roadmap. The zero value grants nothing.
type Permission string

const (
	PermissionNone  Permission = ""
	PermissionView  Permission = "view"
	PermissionEdit  Permission = "edit"
	PermissionAdmin Permission = "admin"
)

func (p Permission) rank() int {
	switch p {
	case PermissionView:
		return 1
	case PermissionEdit:
		return 2
	case PermissionAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether p is a grantable level.
func (p Permission) Valid() bool {
	return p.rank() > 0
}

// Allows reports whether p is at least required.
func (p Permission) Allows(required Permission) bool {
	return p.rank() > 0 && p.rank() >= required.rank()
}

// ParsePermission validates a raw permission level.
func ParsePermission(raw string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return PermissionNone, &ValidationError{Field: "permissionLevel", Message: "must be one of view, edit, admin"}
	}
	return p, nil
}

// Identity is the authenticated caller. A zero Identity is anonymous.
type Identity struct {
	UserID string
	Email  string
}

// Anonymous reports whether no user is attached.
func (id Identity) Anonymous() bool {
	return id.UserID == ""
}

// Share grants a permission on a roadmap to a user or an invited email.
type Share struct {
	UserID     string     `json:"userId,omitempty"`
	Email      string     `json:"email"`
	Permission Permission `json:"permissionLevel"`
}

// Roadmap holds the metadata of a board. Tasks and columns live beside it.
type Roadmap struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	OwnerID     string    `json:"ownerId"`
	IsPublic    bool      `json:"isPublic"`
	SharedWith  []Share   `json:"sharedWith"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PermissionFor resolves the access level of id on the roadmap.
func (r Roadmap) PermissionFor(id Identity) Permission {
	if id.Anonymous() {
		if r.IsPublic {
			return PermissionView
		}
		return PermissionNone
	}
	if r.OwnerID == id.UserID {
		return PermissionAdmin
	}
	for _, s := range r.SharedWith {
		if (id.Email != "" && strings.EqualFold(s.Email, id.Email)) || (s.UserID != "" && s.UserID == id.UserID) {
			return s.Permission
		}
	}
	if r.IsPublic {
		return PermissionView
	}
	return PermissionNone
}

// WithShare returns a copy of r where email holds perm, replacing any
// existing share for the same email.
func (r Roadmap) WithShare(email string, perm Permission) Roadmap {
	email = strings.ToLower(strings.TrimSpace(email))
	shares := make([]Share, 0, len(r.SharedWith)+1)
	found := false
	for _, s := range r.SharedWith {
		if strings.EqualFold(s.Email, email) {
			s.Permission = perm
			found = true
		}
		shares = append(shares, s)
	}
	if !found {
		shares = append(shares, Share{Email: email, Permission: perm})
	}
	r.SharedWith = shares
	return r
}

// WithoutShare returns a copy of r with every share for email removed.
func (r Roadmap) WithoutShare(email string) Roadmap {
	shares := make([]Share, 0, len(r.SharedWith))
	for _, s := range r.SharedWith {
		if !strings.EqualFold(s.Email, strings.TrimSpace(email)) {
			shares = append(shares, s)
		}
	}
	r.SharedWith = shares
	return r
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// NewSlug builds a url friendly identifier from title with a random suffix.
func NewSlug(title string) string {
	base := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
