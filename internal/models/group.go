package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group member roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// GroupMember is one membership entry.
type GroupMember struct {
	User     primitive.ObjectID  `bson:"user" json:"user"`
	Role     string              `bson:"role" json:"role"`
	AddedBy  *primitive.ObjectID `bson:"added_by,omitempty" json:"added_by,omitempty"`
	JoinedAt time.Time           `bson:"joined_at" json:"joined_at"`
}

// GroupSettings controls posting rules.
type GroupSettings struct {
	OnlyAdminsCanPost bool `bson:"only_admins_can_post" json:"only_admins_can_post"`
}

// Group is a chat group. The member list is read as an immutable snapshot for
// the duration of one fanout.
type Group struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Avatar      Avatar             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Owner       primitive.ObjectID `bson:"owner" json:"owner"`
	Members     []GroupMember      `bson:"members" json:"members"`
	Settings    GroupSettings      `bson:"settings" json:"settings"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// IsMember reports whether the user belongs to the group.
func (g *Group) IsMember(id primitive.ObjectID) bool {
	for _, m := range g.Members {
		if m.User == id {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is an owner or admin of the group.
func (g *Group) IsAdmin(id primitive.ObjectID) bool {
	for _, m := range g.Members {
		if m.User == id && (m.Role == RoleOwner || m.Role == RoleAdmin) {
			return true
		}
	}
	return false
}

// MemberIDs returns every member id, optionally excluding one user.
func (g *Group) MemberIDs(exclude string) []string {
	var ids []string
	for _, m := range g.Members {
		if id := m.User.Hex(); id != exclude {
			ids = append(ids, id)
		}
	}
	return ids
}
