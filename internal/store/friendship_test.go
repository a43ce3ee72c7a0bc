package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/gospel5/gospel5/internal/database"
	"github.com/gospel5/gospel5/internal/friendship"
	"github.com/gospel5/gospel5/internal/model"
)

func setupFriendshipTestDB(t *testing.T) (*FriendshipStore, *model.User, *model.User, *model.User) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := NewUserStore(db)
	a, _ := us.Create("alice@example.com", "Alice", "")
	b, _ := us.Create("bob@example.com", "Bob", "")
	c, _ := us.Create("carol@example.com", "Carol", "")
	return NewFriendshipStore(db), a, b, c
}

func TestFriendshipCreate(t *testing.T) {
	fs, a, b, _ := setupFriendshipTestDB(t)

	f, err := fs.Create(a.ID, b.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.ID) != 36 {
		t.Errorf("id = %q, want a uuid", f.ID)
	}
	if f.Status != model.FriendshipPending {
		t.Errorf("status = %q, want pending", f.Status)
	}
	if f.RequesterID != a.ID || f.AddresseeID != b.ID {
		t.Errorf("edge = %d->%d, want %d->%d", f.RequesterID, f.AddresseeID, a.ID, b.ID)
	}
}

func TestFriendshipCreateDuplicate(t *testing.T) {
	fs, a, b, _ := setupFriendshipTestDB(t)

	if _, err := fs.Create(a.ID, b.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fs.Create(b.ID, a.ID); !errors.Is(err, friendship.ErrActiveExists) {
		t.Errorf("reverse create: err = %v, want ErrActiveExists", err)
	}
}

func TestFriendshipUniqueIndexBacksInvariant(t *testing.T) {
	fs, a, b, _ := setupFriendshipTestDB(t)

	if _, err := fs.Create(a.ID, b.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Bypass the existence check to hit the index directly.
	_, err := fs.db.Exec(
		`INSERT INTO friendships (id, requester_id, addressee_id, status) VALUES ('x', ?, ?, 'pending')`,
		b.ID, a.ID,
	)
	if err == nil {
		t.Fatal("expected unique index violation")
	}
	if !isUniqueViolation(err) {
		t.Errorf("err = %v, want unique violation", err)
	}
}

func TestFriendshipConcurrentCreate(t *testing.T) {
	fs, a, b, _ := setupFriendshipTestDB(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = fs.Create(a.ID, b.ID) }()
	go func() { defer wg.Done(); _, errs[1] = fs.Create(b.ID, a.ID) }()
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, friendship.ErrActiveExists):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != 1 {
		t.Errorf("ok=%d dup=%d, want 1 and 1", ok, dup)
	}
}

func TestFriendshipConcurrentCreateFileDB(t *testing.T) {
	db, err := database.Open(t.TempDir() + "/gospel5.db")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := NewUserStore(db)
	fs := NewFriendshipStore(db)

	const pairs, attempts = 20, 4
	type pair struct{ a, b int64 }
	ps := make([]pair, pairs)
	for i := range ps {
		a, err := us.Create(fmt.Sprintf("a%d@example.com", i), "A", "")
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		b, err := us.Create(fmt.Sprintf("b%d@example.com", i), "B", "")
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		ps[i] = pair{a.ID, b.ID}
	}

	// Each pair gets requests in both directions at once.
	errs := make([][]error, pairs)
	var wg sync.WaitGroup
	for i, p := range ps {
		errs[i] = make([]error, attempts)
		for j := range attempts {
			from, to := p.a, p.b
			if j%2 == 1 {
				from, to = to, from
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i][j] = fs.Create(from, to)
			}()
		}
	}
	wg.Wait()

	for i, pe := range errs {
		ok := 0
		for _, err := range pe {
			switch {
			case err == nil:
				ok++
			case !errors.Is(err, friendship.ErrActiveExists):
				t.Errorf("pair %d: err = %v, want ErrActiveExists", i, err)
			}
		}
		if ok != 1 {
			t.Errorf("pair %d: %d creates succeeded, want 1", i, ok)
		}
	}
}

func TestFriendshipDeclinedAllowsNewEdge(t *testing.T) {
	fs, a, b, _ := setupFriendshipTestDB(t)

	f, _ := fs.Create(a.ID, b.ID)
	changed, err := fs.UpdateStatus(f.ID, model.FriendshipPending, model.FriendshipDeclined)
	if err != nil || !changed {
		t.Fatalf("decline: changed=%v err=%v", changed, err)
	}

	if _, err := fs.Create(a.ID, b.ID); err != nil {
		t.Errorf("re-request after decline: %v", err)
	}
}

func TestFriendshipUpdateStatusRequiresFrom(t *testing.T) {
	fs, a, b, _ := setupFriendshipTestDB(t)

	f, _ := fs.Create(a.ID, b.ID)
	fs.UpdateStatus(f.ID, model.FriendshipPending, model.FriendshipAccepted)

	changed, err := fs.UpdateStatus(f.ID, model.FriendshipPending, model.FriendshipDeclined)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if changed {
		t.Error("expected no change for non-pending edge")
	}

	got, _ := fs.GetByID(f.ID)
	if got.Status != model.FriendshipAccepted {
		t.Errorf("status = %q, want accepted", got.Status)
	}
}

func TestFriendshipListsAndDelete(t *testing.T) {
	fs, a, b, c := setupFriendshipTestDB(t)

	ab, _ := fs.Create(a.ID, b.ID)
	fs.UpdateStatus(ab.ID, model.FriendshipPending, model.FriendshipAccepted)
	ca, _ := fs.Create(c.ID, a.ID)
	bc, _ := fs.Create(b.ID, c.ID)

	accepted, err := fs.ListAccepted(b.ID)
	if err != nil {
		t.Fatalf("list accepted: %v", err)
	}
	if len(accepted) != 1 || accepted[0].ID != ab.ID {
		t.Errorf("accepted(b) = %v, want [%s]", accepted, ab.ID)
	}

	incoming, _ := fs.ListPendingTo(a.ID)
	if len(incoming) != 1 || incoming[0].ID != ca.ID {
		t.Errorf("incoming(a) = %v, want [%s]", incoming, ca.ID)
	}
	outgoing, _ := fs.ListPendingFrom(b.ID)
	if len(outgoing) != 1 || outgoing[0].ID != bc.ID {
		t.Errorf("outgoing(b) = %v, want [%s]", outgoing, bc.ID)
	}

	// Pending edges are not removable as friendships.
	if removed, _ := fs.DeleteAccepted(c.ID, a.ID); removed != nil {
		t.Errorf("removed pending edge %v", removed)
	}

	removed, err := fs.DeleteAccepted(b.ID, a.ID)
	if err != nil {
		t.Fatalf("delete accepted: %v", err)
	}
	if removed == nil || removed.ID != ab.ID {
		t.Fatalf("removed = %v, want %s", removed, ab.ID)
	}
	if got, _ := fs.GetByID(ab.ID); got != nil {
		t.Error("expected edge to be hard deleted")
	}
}

func TestFriendshipManagerOverStore(t *testing.T) {
	fs, a, b, _ := setupFriendshipTestDB(t)
	m := friendship.NewManager(fs, nil, slog.Default())

	f, err := m.SendRequest(a.ID, b.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := m.SendRequest(b.ID, a.ID); !errors.Is(err, friendship.ErrDuplicateRequest) {
		t.Errorf("reverse request: err = %v, want ErrDuplicateRequest", err)
	}

	if _, err := m.RespondToRequest(b.ID, f.ID, model.FriendshipAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	friendsA, _ := m.ListFriends(a.ID)
	friendsB, _ := m.ListFriends(b.ID)
	if len(friendsA) != 1 || friendsA[0] != b.ID {
		t.Errorf("friends(a) = %v, want [%d]", friendsA, b.ID)
	}
	if len(friendsB) != 1 || friendsB[0] != a.ID {
		t.Errorf("friends(b) = %v, want [%d]", friendsB, a.ID)
	}

	if err := m.RemoveFriend(a.ID, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if friendsB, _ = m.ListFriends(b.ID); len(friendsB) != 0 {
		t.Errorf("friends(b) after removal = %v, want empty", friendsB)
	}
}
