// Package access resolves what a CMS role may do, in one place.
package access

import (
	"fmt"
	"strings"
)

// Role is a CMS user role
type Role string

const (
	Superadmin Role = "superadmin"
	Editor     Role = "editor"
	Blogger    Role = "blogger"
	Viewer     Role = "viewer"
)

// Action is something a role may be allowed to do in a section
type Action string

const (
	View   Action = "view"
	Edit   Action = "edit"
	Upload Action = "upload"
	Delete Action = "delete"
)

// Section groups records: reports, blogs, banners, users, ...
type Section string

const (
	Reports Section = "reports"
	Blogs   Section = "blogs"
	Users   Section = "users"
)

// anySection is the wildcard used in grants
const anySection Section = "*"

type grant struct {
	section Section
	actions []Action
}

var policy = map[Role][]grant{
	Superadmin: {
		{anySection, []Action{View, Edit, Upload, Delete}},
	},
	Editor: {
		{Reports, []Action{View, Edit, Upload, Delete}},
		{Blogs, []Action{View, Edit, Upload, Delete}},
		{anySection, []Action{View}},
	},
	Blogger: {
		{Blogs, []Action{View, Edit, Upload}},
		{anySection, []Action{View}},
	},
	Viewer: {
		{anySection, []Action{View}},
	},
}

// Capabilities is the resolved permission set of one role
type Capabilities struct {
	role   Role
	grants []grant
}

// ParseRole validates a role name
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := policy[r]; !ok {
		return "", fmt.Errorf("unknown role %q: must be superadmin, editor, blogger or viewer", s)
	}
	return r, nil
}

// Resolve returns the capabilities of role. Unknown roles get none.
func Resolve(role Role) Capabilities {
	return Capabilities{role: role, grants: policy[role]}
}

// Role returns the role the capabilities were resolved for
func (c Capabilities) Role() Role {
	return c.role
}

// Allows reports whether action is permitted in section
func (c Capabilities) Allows(section Section, action Action) bool {
	for _, g := range c.grants {
		if g.section != anySection && g.section != section {
			continue
		}
		for _, a := range g.actions {
			if a == action {
				return true
			}
		}
	}
	return false
}

// Require returns an error when action is not permitted in section
func (c Capabilities) Require(section Section, action Action) error {
	if c.Allows(section, action) {
		return nil
	}
	return fmt.Errorf("role %q may not %s %s", c.role, action, section)
}
