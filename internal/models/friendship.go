package models

import "gorm.io/gorm"

// FriendshipStatus defines the state of a friendship request between two users.
type FriendshipStatus string

const (
	// StatusRequested means a friend request has been sent and is awaiting an answer.
	StatusRequested FriendshipStatus = "requested"

	// StatusAccepted means the request was accepted, and the users are now friends.
	StatusAccepted FriendshipStatus = "accepted"

	// StatusDeclined means the addressee turned the request down. A declined row is
	// history only: it never blocks the requester from sending a new request later.
	StatusDeclined FriendshipStatus = "declined"
)

// Friendship is a directional relationship record. Rows are append-only: a new
// request inserts a new row, and answered requests keep their row with the status
// flipped. Mutual friendship is represented by two accepted rows, one per direction.
//
// The partial unique index on (requester_id, addressee_id) scoped to
// status = 'requested' guarantees at most one outstanding request per ordered pair,
// even under concurrent sends. Historical declined/accepted rows are not covered by
// the index and may accumulate.
type Friendship struct {
	gorm.Model
	RequesterID uint             `gorm:"not null;uniqueIndex:idx_friendships_active_pair,priority:1"`
	AddresseeID uint             `gorm:"not null;uniqueIndex:idx_friendships_active_pair,priority:2,where:status = 'requested'"`
	Status      FriendshipStatus `gorm:"type:varchar(20);not null;index"`

	Requester User `gorm:"foreignKey:RequesterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Addressee User `gorm:"foreignKey:AddresseeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
