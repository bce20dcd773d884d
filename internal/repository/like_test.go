package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"interaction-backend/internal/models"

	"github.com/google/uuid"
)

func newLike(sender, recipient models.UserID) *models.Like {
	return &models.Like{
		ID:          uuid.New().String(),
		SenderID:    sender,
		RecipientID: recipient,
		CreatedAt:   base,
	}
}

func TestCreateLastQuotaUnitConcurrently(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewLikeRepository(db)
	sender := addUser(t, db, 1)
	recipients := []models.UserID{addUser(t, db, 10), addUser(t, db, 10)}

	errs := make([]error, len(recipients))
	var wg sync.WaitGroup
	for i, recipient := range recipients {
		wg.Add(1)
		go func(i int, recipient models.UserID) {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, newLike(sender, recipient), true)
		}(i, recipient)
	}
	wg.Wait()

	succeeded, exhausted := 0, 0
	for _, err := range errs {
		var qerr *models.QuotaExceededError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &qerr):
			exhausted++
			if !qerr.ResetAt.Equal(base.Add(12 * time.Hour)) {
				t.Errorf("ResetAt = %v, want %v", qerr.ResetAt, base.Add(12*time.Hour))
			}
		default:
			t.Errorf("Create() error = %v", err)
		}
	}
	if succeeded != 1 || exhausted != 1 {
		t.Errorf("succeeded = %d exhausted = %d, want 1 and 1", succeeded, exhausted)
	}

	user, err := NewUserRepository(db).GetByID(ctx, sender)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if user.DailyLikesRemaining != 0 {
		t.Errorf("remaining = %d, want 0", user.DailyLikesRemaining)
	}
	sent, err := repo.ListSent(ctx, sender)
	if err != nil {
		t.Fatalf("ListSent() error = %v", err)
	}
	if len(sent) != 1 {
		t.Errorf("sent = %d likes, want 1", len(sent))
	}
}

func TestCreateDuplicateAndMatch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewLikeRepository(db)
	a := addUser(t, db, 5)
	b := addUser(t, db, 5)

	res, err := repo.Create(ctx, newLike(a, b), true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.IsMatch || res.LikesRemaining == nil || *res.LikesRemaining != 4 {
		t.Errorf("result = %+v, want no match and 4 remaining", res)
	}

	if _, err := repo.Create(ctx, newLike(a, b), true); !errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("duplicate: error = %v, want ErrAlreadyExists", err)
	}
	user, _ := NewUserRepository(db).GetByID(ctx, a)
	if user.DailyLikesRemaining != 4 {
		t.Errorf("remaining after duplicate = %d, want 4", user.DailyLikesRemaining)
	}

	res, err = repo.Create(ctx, newLike(b, a), false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !res.IsMatch || res.LikesRemaining != nil {
		t.Errorf("reverse like = %+v, want match without quota", res)
	}

	matches, err := repo.ListMatches(ctx, a)
	if err != nil {
		t.Fatalf("ListMatches() error = %v", err)
	}
	if len(matches) != 1 || matches[0].RecipientID != b {
		t.Errorf("matches = %v, want the like to b", matches)
	}

	if err := repo.Delete(ctx, b, a); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, b, a); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
