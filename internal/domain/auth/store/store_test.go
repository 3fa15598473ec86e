package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"chat-server-go/internal/domain/auth/model"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := s.FindByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID(unknown) error = %v, want ErrNotFound", err)
	}

	created, err := s.Create(ctx, model.Identity{Email: "alice@example.com", PasswordHash: "$argon2id$hash", IsActive: true})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.ID == 0 || created.CreatedAt.IsZero() {
		t.Fatalf("Create did not assign id/timestamps: %+v", created)
	}

	byEmail, err := s.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if byEmail.ID != created.ID || byEmail.PasswordHash != "$argon2id$hash" || !byEmail.IsActive {
		t.Fatalf("unexpected identity: %+v", byEmail)
	}

	byID, err := s.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if byID.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", byID)
	}

	// email comparison is case-sensitive
	if _, err := s.FindByEmail(ctx, "ALICE@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail(upper) error = %v, want ErrNotFound", err)
	}

	if _, err := s.Create(ctx, model.Identity{Email: "alice@example.com", PasswordHash: "other", IsActive: true}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate Create error = %v, want ErrConflict", err)
	}

	bob, err := s.Create(ctx, model.Identity{Email: "bob@example.com", PasswordHash: "h", IsActive: true})
	if err != nil {
		t.Fatalf("Create bob error: %v", err)
	}
	if bob.ID == created.ID {
		t.Fatalf("ids must be distinct: %d", bob.ID)
	}

	list, err := s.List(ctx, model.ListOptions{ActiveOnly: true})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 || list[0].Email != "alice@example.com" {
		t.Fatalf("unexpected list: %+v", list)
	}

	page, err := s.List(ctx, model.ListOptions{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("List page error: %v", err)
	}
	if len(page) != 1 || page[0].Email != "bob@example.com" {
		t.Fatalf("unexpected page: %+v", page)
	}

	carol, err := s.Create(ctx, model.Identity{Email: "carol@example.com", PasswordHash: "h", IsActive: false})
	if err != nil {
		t.Fatalf("Create inactive error: %v", err)
	}
	if carol.IsActive {
		t.Fatalf("Create returned inactive identity as active: %+v", carol)
	}
	stored, err := s.FindByID(ctx, carol.ID)
	if err != nil {
		t.Fatalf("FindByID inactive error: %v", err)
	}
	if stored.IsActive {
		t.Fatalf("inactive identity persisted as active: %+v", stored)
	}
	active, err := s.List(ctx, model.ListOptions{ActiveOnly: true})
	if err != nil {
		t.Fatalf("List active error: %v", err)
	}
	for _, identity := range active {
		if identity.ID == carol.ID {
			t.Fatalf("inactive identity listed as active: %+v", active)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats["type"] == nil {
		t.Fatalf("stats missing type: %v", stats)
	}
}

// runConcurrentCreate checks that exactly one of many racing registrations
// for the same email wins.
func runConcurrentCreate(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Create(ctx, model.Identity{Email: "race@example.com", PasswordHash: fmt.Sprintf("h%d", i), IsActive: true})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != workers-1 {
		t.Fatalf("wins=%d conflicts=%d, want 1 and %d", wins, conflicts, workers-1)
	}
}
