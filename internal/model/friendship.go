package model

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipDeclined FriendshipStatus = "declined"
)

// Active reports whether the status counts toward the one-edge-per-pair limit.
func (s FriendshipStatus) Active() bool {
	return s == FriendshipPending || s == FriendshipAccepted
}

// Friendship is a directed friend-request edge from RequesterID to AddresseeID.
type Friendship struct {
	ID          string           `json:"id"`
	RequesterID int64            `json:"requester_id"`
	AddresseeID int64            `json:"addressee_id"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Other returns the user on the opposite side of the edge from userID.
func (f Friendship) Other(userID int64) int64 {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}
