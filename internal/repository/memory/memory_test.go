package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"interaction-backend/internal/models"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestUpsertPendingConcurrent(t *testing.T) {
	store := NewPermissions()
	owner := models.NewUserID()
	requester := models.NewUserID()

	const workers = 16
	outcomes := make([]models.UpsertOutcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, outcome, err := store.UpsertPending(context.Background(), &models.PermissionRequest{
				ID:          models.NewUserID().String(),
				PhotoID:     "photo-1",
				OwnerID:     owner,
				RequesterID: requester,
				CreatedAt:   base,
			})
			if err != nil {
				t.Errorf("UpsertPending() error = %v", err)
			}
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == models.UpsertCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("created %d records, want 1", created)
	}
	list, _ := store.ListByRequester(context.Background(), requester)
	if len(list) != 1 {
		t.Errorf("ledger has %d records, want 1", len(list))
	}
}

func TestTransitionGuardsFromState(t *testing.T) {
	ctx := context.Background()
	store := NewPermissions()
	perm, _, err := store.UpsertPending(ctx, &models.PermissionRequest{
		ID:          "perm-1",
		PhotoID:     "photo-1",
		OwnerID:     models.NewUserID(),
		RequesterID: models.NewUserID(),
		CreatedAt:   base,
	})
	if err != nil {
		t.Fatalf("UpsertPending() error = %v", err)
	}

	if _, err := store.Transition(ctx, perm.ID, models.PermissionPending, models.PermissionApproved, "ok", base, nil); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	_, err = store.Transition(ctx, perm.ID, models.PermissionPending, models.PermissionRejected, "", base, nil)
	var serr *models.InvalidStateError
	if !errors.As(err, &serr) || serr.Current != string(models.PermissionApproved) {
		t.Fatalf("error = %v, want InvalidStateError with current approved", err)
	}
	if _, err := store.Transition(ctx, "missing", models.PermissionPending, models.PermissionApproved, "", base, nil); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing record: error = %v, want ErrNotFound", err)
	}
}

func TestLikesQuotaAndMatch(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()
	a, b := models.NewUserID(), models.NewUserID()
	users.Add(&models.User{ID: a, Tier: models.TierFree, DailyLikesRemaining: 1, LikesResetAt: base})
	users.Add(&models.User{ID: b, Tier: models.TierFree, DailyLikesRemaining: 1, LikesResetAt: base})
	likes := NewLikes(users)

	res, err := likes.Create(ctx, &models.Like{ID: "l1", SenderID: a, RecipientID: b, CreatedAt: base}, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.IsMatch || res.LikesRemaining == nil || *res.LikesRemaining != 0 {
		t.Errorf("result = %+v", res)
	}

	if _, err := likes.Create(ctx, &models.Like{ID: "l2", SenderID: a, RecipientID: b, CreatedAt: base}, true); !errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("duplicate: error = %v, want ErrAlreadyExists", err)
	}

	res, err = likes.Create(ctx, &models.Like{ID: "l3", SenderID: b, RecipientID: a, CreatedAt: base}, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !res.IsMatch {
		t.Error("reverse like should match")
	}

	c := models.NewUserID()
	users.Add(&models.User{ID: c, Tier: models.TierFree, DailyLikesRemaining: 5})
	_, err = likes.Create(ctx, &models.Like{ID: "l4", SenderID: a, RecipientID: c, CreatedAt: base}, true)
	var qerr *models.QuotaExceededError
	if !errors.As(err, &qerr) || !qerr.ResetAt.Equal(base) {
		t.Errorf("error = %v, want QuotaExceededError resetting at %v", err, base)
	}
	if sent, _ := likes.ListSent(ctx, a); len(sent) != 1 {
		t.Errorf("sent = %d likes, want 1 (quota failure must not store)", len(sent))
	}
}

func TestDeleteForPartyRemovesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMessages()
	sender, recipient := models.NewUserID(), models.NewUserID()
	if err := store.Create(ctx, &models.Message{ID: "m1", SenderID: sender, RecipientID: recipient, Type: models.MessageText, CreatedAt: base}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var wg sync.WaitGroup
	removed := make([]bool, 2)
	for i, party := range []models.UserID{sender, recipient} {
		wg.Add(1)
		go func(i int, party models.UserID) {
			defer wg.Done()
			var err error
			removed[i], err = store.DeleteForParty(ctx, "m1", party)
			if err != nil {
				t.Errorf("DeleteForParty() error = %v", err)
			}
		}(i, party)
	}
	wg.Wait()

	if removed[0] == removed[1] {
		t.Errorf("removed = %v, want exactly one physical removal", removed)
	}
	if _, err := store.GetByID(ctx, "m1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestListConversationVisibility(t *testing.T) {
	ctx := context.Background()
	store := NewMessages()
	a, b := models.NewUserID(), models.NewUserID()
	for i, id := range []string{"m1", "m2", "m3"} {
		if err := store.Create(ctx, &models.Message{
			ID:          id,
			SenderID:    a,
			RecipientID: b,
			Type:        models.MessageText,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := store.DeleteForParty(ctx, "m2", b); err != nil {
		t.Fatalf("DeleteForParty() error = %v", err)
	}

	forB, _ := store.ListConversation(ctx, b, a, time.Time{}, 10)
	if len(forB) != 2 || forB[0].ID != "m3" || forB[1].ID != "m1" {
		t.Errorf("recipient view = %v", ids(forB))
	}
	forA, _ := store.ListConversation(ctx, a, b, base.Add(2*time.Minute), 10)
	if len(forA) != 2 || forA[0].ID != "m2" {
		t.Errorf("sender view before m3 = %v", ids(forA))
	}

	counts, _ := store.CountUnread(ctx, b)
	if counts[a] != 2 {
		t.Errorf("unread = %d, want 2 (hidden message excluded)", counts[a])
	}
}

func TestUpsertReactionMovesReplacedToEnd(t *testing.T) {
	ctx := context.Background()
	store := NewMessages()
	a, b := models.NewUserID(), models.NewUserID()
	if err := store.Create(ctx, &models.Message{ID: "m1", SenderID: a, RecipientID: b, Type: models.MessageText, CreatedAt: base}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	steps := []models.Reaction{
		{UserID: a, Emoji: "👍", CreatedAt: base.Add(time.Minute)},
		{UserID: b, Emoji: "❤️", CreatedAt: base.Add(2 * time.Minute)},
		{UserID: a, Emoji: "😂", CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, r := range steps {
		if err := store.UpsertReaction(ctx, "m1", r); err != nil {
			t.Fatalf("UpsertReaction() error = %v", err)
		}
	}

	m, _ := store.GetByID(ctx, "m1")
	if len(m.Reactions) != 2 {
		t.Fatalf("reactions = %v, want 2", m.Reactions)
	}
	if m.Reactions[0].UserID != b || m.Reactions[1].UserID != a || m.Reactions[1].Emoji != "😂" {
		t.Errorf("reactions = %v, want b then replaced a", m.Reactions)
	}
}

func ids(msgs []*models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestPhotosProfileAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewPhotos()
	owner := models.NewUserID()

	first := &models.Photo{ID: "p1", OwnerID: owner, Visibility: models.VisibilityPublic, UploadedAt: base}
	second := &models.Photo{ID: "p2", OwnerID: owner, Visibility: models.VisibilityPrivate, UploadedAt: base.Add(time.Minute)}
	for _, p := range []*models.Photo{first, second} {
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if !first.IsProfile || second.IsProfile {
		t.Fatalf("profile flags = %v/%v, want first only", first.IsProfile, second.IsProfile)
	}

	var serr *models.InvalidStateError
	if err := store.SoftDelete(ctx, owner, "p1"); !errors.As(err, &serr) {
		t.Fatalf("deleting profile: error = %v, want InvalidStateError", err)
	}
	if err := store.SetProfile(ctx, owner, "p2"); err != nil {
		t.Fatalf("SetProfile() error = %v", err)
	}
	if err := store.SoftDelete(ctx, owner, "p1"); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	live, _ := store.ListByOwner(ctx, owner)
	if len(live) != 1 || live[0].ID != "p2" || !live[0].IsProfile {
		t.Errorf("live photos = %+v", live)
	}
	if err := store.SoftDelete(ctx, owner, "p2"); !errors.As(err, &serr) {
		t.Errorf("deleting the last photo: error = %v, want InvalidStateError", err)
	}
}
