package friendship

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gospel5/gospel5/internal/model"
)

var (
	ErrInvalidRequest   = errors.New("invalid friend request")
	ErrDuplicateRequest = errors.New("friend request already exists")
	ErrNotFound         = errors.New("friendship not found")
	ErrUnauthorized     = errors.New("only the addressee may respond to a friend request")
)

// ErrActiveExists is returned by a Repository when an insert would create a
// second pending or accepted edge for the same pair of users.
var ErrActiveExists = errors.New("active friendship exists for pair")

// Repository persists friendship edges. Create must enforce the
// one-active-edge-per-pair rule atomically.
type Repository interface {
	Create(requesterID, addresseeID int64) (*model.Friendship, error)
	GetByID(id string) (*model.Friendship, error)
	// UpdateStatus moves the edge from one status to another and reports
	// whether a row in the from status was changed.
	UpdateStatus(id string, from, to model.FriendshipStatus) (bool, error)
	// DeleteAccepted removes the accepted edge between a and b, in either
	// direction, returning the removed edge or nil if there was none.
	DeleteAccepted(a, b int64) (*model.Friendship, error)
	ListAccepted(userID int64) ([]model.Friendship, error)
	ListPendingTo(addresseeID int64) ([]model.Friendship, error)
	ListPendingFrom(requesterID int64) ([]model.Friendship, error)
}

// EventType names a friendship transition.
type EventType string

const (
	EventRequested EventType = "requested"
	EventAccepted  EventType = "accepted"
	EventDeclined  EventType = "declined"
	EventRemoved   EventType = "removed"
)

// Event describes an edge before and after a transition. Before is nil for a
// new request; After is nil for a removal.
type Event struct {
	Type   EventType         `json:"type"`
	Before *model.Friendship `json:"before"`
	After  *model.Friendship `json:"after"`
}

// Manager runs the friend-request lifecycle.
type Manager struct {
	repo     Repository
	onChange func(Event)
	logger   *slog.Logger
}

// NewManager creates a Manager. onChange, if non-nil, is called after every
// successful transition.
func NewManager(repo Repository, onChange func(Event), logger *slog.Logger) *Manager {
	return &Manager{repo: repo, onChange: onChange, logger: logger}
}

func (m *Manager) emit(ev Event) {
	if m.onChange != nil {
		m.onChange(ev)
	}
}

// SendRequest creates a pending edge from requester to addressee.
func (m *Manager) SendRequest(requesterID, addresseeID int64) (*model.Friendship, error) {
	if requesterID == addresseeID {
		return nil, fmt.Errorf("%w: cannot befriend yourself", ErrInvalidRequest)
	}

	f, err := m.repo.Create(requesterID, addresseeID)
	if errors.Is(err, ErrActiveExists) {
		return nil, ErrDuplicateRequest
	}
	if err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	m.logger.Info("friend request sent", "id", f.ID, "requester", requesterID, "addressee", addresseeID)
	m.emit(Event{Type: EventRequested, After: f})
	return f, nil
}

// RespondToRequest accepts or declines a pending request on behalf of
// callerID, who must be the addressee.
func (m *Manager) RespondToRequest(callerID int64, edgeID string, decision model.FriendshipStatus) (*model.Friendship, error) {
	if decision != model.FriendshipAccepted && decision != model.FriendshipDeclined {
		return nil, fmt.Errorf("%w: decision must be accepted or declined", ErrInvalidRequest)
	}

	before, err := m.repo.GetByID(edgeID)
	if err != nil {
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	if before == nil || before.Status != model.FriendshipPending {
		return nil, ErrNotFound
	}
	if before.AddresseeID != callerID {
		return nil, ErrUnauthorized
	}

	changed, err := m.repo.UpdateStatus(edgeID, model.FriendshipPending, decision)
	if err != nil {
		return nil, fmt.Errorf("update friend request: %w", err)
	}
	if !changed {
		// Lost a race with another response.
		return nil, ErrNotFound
	}

	after := *before
	after.Status = decision
	fresh, err := m.repo.GetByID(edgeID)
	switch {
	case err != nil:
		// The update is committed; answer from the pre-read edge.
		m.logger.Warn("reload friend request", "id", edgeID, "error", err)
	case fresh != nil:
		after = *fresh
	}

	evType := EventAccepted
	if decision == model.FriendshipDeclined {
		evType = EventDeclined
	}
	m.logger.Info("friend request answered", "id", edgeID, "decision", decision)
	m.emit(Event{Type: evType, Before: before, After: &after})
	return &after, nil
}

// RemoveFriend deletes the accepted edge between a and b. Either party may call it.
func (m *Manager) RemoveFriend(a, b int64) error {
	removed, err := m.repo.DeleteAccepted(a, b)
	if err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	if removed == nil {
		return ErrNotFound
	}

	m.logger.Info("friendship removed", "id", removed.ID, "by", a, "other", b)
	m.emit(Event{Type: EventRemoved, Before: removed})
	return nil
}

// ListFriends returns the IDs of users connected to userID by an accepted
// edge, whichever side sent the request.
func (m *Manager) ListFriends(userID int64) ([]int64, error) {
	edges, err := m.repo.ListAccepted(userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	ids := make([]int64, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.Other(userID))
	}
	return ids, nil
}

func (m *Manager) ListIncomingRequests(userID int64) ([]model.Friendship, error) {
	edges, err := m.repo.ListPendingTo(userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	return edges, nil
}

func (m *Manager) ListOutgoingRequests(userID int64) ([]model.Friendship, error) {
	edges, err := m.repo.ListPendingFrom(userID)
	if err != nil {
		return nil, fmt.Errorf("list outgoing requests: %w", err)
	}
	return edges, nil
}
