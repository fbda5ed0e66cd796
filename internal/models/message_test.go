package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMessageStatusRankIsMonotonic(t *testing.T) {
	lifecycle := []MessageStatus{MessageSent, MessageDelivered, MessageRead}
	for i := 1; i < len(lifecycle); i++ {
		if lifecycle[i-1].Rank() >= lifecycle[i].Rank() {
			t.Fatalf("Rank(%s) = %d is not below Rank(%s) = %d",
				lifecycle[i-1], lifecycle[i-1].Rank(), lifecycle[i], lifecycle[i].Rank())
		}
	}
	if MessageStatus("bogus").Rank() != -1 {
		t.Fatal("unknown status must rank below every lifecycle state")
	}
}

func TestMessageParticipants(t *testing.T) {
	sender := primitive.NewObjectID()
	receiver := primitive.NewObjectID()
	outsider := primitive.NewObjectID()

	m := &Message{Sender: sender, Receiver: &receiver}

	if !m.Participant(sender) || !m.Participant(receiver) {
		t.Fatal("sender and receiver are both participants")
	}
	if m.Participant(outsider) {
		t.Fatal("outsider accepted as participant")
	}
	if m.Counterpart(sender) != receiver || m.Counterpart(receiver) != sender {
		t.Fatal("counterpart does not return the other party")
	}
}

func TestGroupRoles(t *testing.T) {
	owner := primitive.NewObjectID()
	admin := primitive.NewObjectID()
	member := primitive.NewObjectID()
	outsider := primitive.NewObjectID()

	g := &Group{
		Owner: owner,
		Members: []GroupMember{
			{User: owner, Role: RoleOwner},
			{User: admin, Role: RoleAdmin},
			{User: member, Role: RoleMember},
		},
	}

	if !g.IsMember(member) || g.IsMember(outsider) {
		t.Fatal("membership check wrong")
	}
	if !g.IsAdmin(owner) || !g.IsAdmin(admin) || g.IsAdmin(member) {
		t.Fatal("admin check wrong")
	}

	ids := g.MemberIDs(owner.Hex())
	if len(ids) != 2 {
		t.Fatalf("MemberIDs excluding owner = %d entries, want 2", len(ids))
	}
	for _, id := range ids {
		if id == owner.Hex() {
			t.Fatal("excluded member still listed")
		}
	}
}
