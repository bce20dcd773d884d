package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"interaction-backend/internal/models"
	"interaction-backend/internal/notify"
)

func TestRequestAccessErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, models.TierFree, 10)
	requester := env.addUser(t, models.TierFree, 10)

	public := env.upload(t, owner, models.VisibilityPublic)
	private := env.upload(t, owner, models.VisibilityPrivate)

	if _, err := env.permissionSvc.RequestAccess(ctx, requester, "missing", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown photo: error = %v, want ErrNotFound", err)
	}

	var serr *models.InvalidStateError
	if _, err := env.permissionSvc.RequestAccess(ctx, requester, public.ID, ""); !errors.As(err, &serr) {
		t.Errorf("public photo: error = %v, want InvalidStateError", err)
	} else if serr.Current != string(models.VisibilityPublic) {
		t.Errorf("Current = %q, want public", serr.Current)
	}

	if _, err := env.permissionSvc.RequestAccess(ctx, owner, private.ID, ""); !errors.Is(err, models.ErrSelfReference) {
		t.Errorf("own photo: error = %v, want ErrSelfReference", err)
	}

	var verr *models.ValidationError
	long := strings.Repeat("é", maxPermissionMessageLength+1)
	if _, err := env.permissionSvc.RequestAccess(ctx, requester, private.ID, long); !errors.As(err, &verr) {
		t.Errorf("long message: error = %v, want ValidationError", err)
	}

	if n := env.notifier.count(notify.EventPermissionRequested); n != 0 {
		t.Errorf("published %d request events, want 0", n)
	}
}

func TestRequestAccessConcurrentCreatesOneRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, models.TierFree, 10)
	requester := env.addUser(t, models.TierFree, 10)
	env.upload(t, owner, models.VisibilityPublic)
	private := env.upload(t, owner, models.VisibilityPrivate)

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			perm, err := env.permissionSvc.RequestAccess(ctx, requester, private.ID, "please")
			if err != nil {
				t.Errorf("RequestAccess() error = %v", err)
				return
			}
			ids[i] = perm.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("got distinct records %s and %s", ids[0], id)
		}
	}
	outgoing, err := env.permissionSvc.ListOutgoing(ctx, requester)
	if err != nil {
		t.Fatalf("ListOutgoing() error = %v", err)
	}
	if len(outgoing) != 1 {
		t.Errorf("ledger has %d records, want 1", len(outgoing))
	}
	if n := env.notifier.count(notify.EventPermissionRequested); n != 1 {
		t.Errorf("published %d request events, want 1", n)
	}
}

func TestRespondAndReopen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, models.TierFree, 10)
	requester := env.addUser(t, models.TierFree, 10)
	stranger := env.addUser(t, models.TierFree, 10)
	env.upload(t, owner, models.VisibilityPublic)
	private := env.upload(t, owner, models.VisibilityPrivate)

	perm, err := env.permissionSvc.RequestAccess(ctx, requester, private.ID, "hi")
	if err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}

	if _, err := env.permissionSvc.Respond(ctx, stranger, perm.ID, models.PermissionApproved, ""); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("stranger respond: error = %v, want ErrForbidden", err)
	}
	if _, err := env.permissionSvc.Respond(ctx, owner, perm.ID, models.PermissionPending, ""); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("pending status: error = %v, want ErrInvalidStatus", err)
	}

	rejected, err := env.permissionSvc.Respond(ctx, owner, perm.ID, models.PermissionRejected, "no thanks")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if rejected.Status != models.PermissionRejected || rejected.RespondedAt == nil {
		t.Errorf("rejected = %+v", rejected)
	}
	if last := env.notifier.last(); last.event != notify.EventPermissionResponded || last.target != requester {
		t.Errorf("last event = %s to %s, want responded to requester", last.event, last.target)
	}

	var serr *models.InvalidStateError
	if _, err := env.permissionSvc.Respond(ctx, owner, perm.ID, models.PermissionApproved, ""); !errors.As(err, &serr) {
		t.Errorf("second response: error = %v, want InvalidStateError", err)
	} else if serr.Current != string(models.PermissionRejected) {
		t.Errorf("Current = %q, want rejected", serr.Current)
	}

	reopened, err := env.permissionSvc.RequestAccess(ctx, requester, private.ID, "again")
	if err != nil {
		t.Fatalf("RequestAccess() after rejection error = %v", err)
	}
	if reopened.ID != perm.ID {
		t.Errorf("reopened ID = %s, want %s", reopened.ID, perm.ID)
	}
	if reopened.Status != models.PermissionPending || reopened.RespondedAt != nil {
		t.Errorf("reopened = %+v, want fresh pending", reopened)
	}
	if n := env.notifier.count(notify.EventPermissionRequested); n != 2 {
		t.Errorf("published %d request events, want 2", n)
	}
}

func TestRespondForByPhotoAndRequester(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, models.TierFree, 10)
	requester := env.addUser(t, models.TierFree, 10)
	env.upload(t, owner, models.VisibilityPublic)
	private := env.upload(t, owner, models.VisibilityPrivate)

	if _, err := env.permissionSvc.RespondFor(ctx, owner, private.ID, requester, models.PermissionApproved, ""); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("no request yet: error = %v, want ErrNotFound", err)
	}
	if _, err := env.permissionSvc.RequestAccess(ctx, requester, private.ID, ""); err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}
	if _, err := env.permissionSvc.RespondFor(ctx, requester, private.ID, requester, models.PermissionApproved, ""); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("non-owner: error = %v, want ErrForbidden", err)
	}

	perm, err := env.permissionSvc.RespondFor(ctx, owner, private.ID, requester, models.PermissionApproved, "enjoy")
	if err != nil {
		t.Fatalf("RespondFor() error = %v", err)
	}
	if perm.Status != models.PermissionApproved || perm.ResponseMessage != "enjoy" {
		t.Errorf("perm = %+v", perm)
	}
}

func TestApprovedGrantExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, models.TierFree, 10)
	viewer := env.addUser(t, models.TierFree, 10)
	env.upload(t, owner, models.VisibilityPublic)
	private := env.upload(t, owner, models.VisibilityPrivate)

	perm, err := env.permissionSvc.RequestAccess(ctx, viewer, private.ID, "")
	if err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}
	approved, err := env.permissionSvc.Respond(ctx, owner, perm.ID, models.PermissionApproved, "")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if approved.ExpiresAt == nil {
		t.Fatal("approved grant has no expiry")
	}
	if got := approved.ExpiresAt.Sub(*approved.RespondedAt); got != 30*24*time.Hour {
		t.Errorf("grant lifetime = %v, want 720h", got)
	}

	if !privateVisible(t, env, viewer, owner, private.ID) {
		t.Fatal("viewer should see the private photo while the grant is live")
	}

	env.clock.Advance(31 * 24 * time.Hour)

	if privateVisible(t, env, viewer, owner, private.ID) {
		t.Fatal("viewer should not see the private photo after expiry")
	}
	stored, err := env.permissions.GetByID(ctx, perm.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != models.PermissionApproved {
		t.Errorf("stored status = %s, want approved record to persist", stored.Status)
	}
}

func TestRequestAccessAfterExpiryReopens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, models.TierFree, 10)
	viewer := env.addUser(t, models.TierFree, 10)
	env.upload(t, owner, models.VisibilityPublic)
	private := env.upload(t, owner, models.VisibilityPrivate)

	perm, err := env.permissionSvc.RequestAccess(ctx, viewer, private.ID, "")
	if err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}
	if _, err := env.permissionSvc.Respond(ctx, owner, perm.ID, models.PermissionApproved, ""); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	live, err := env.permissionSvc.RequestAccess(ctx, viewer, private.ID, "again")
	if err != nil {
		t.Fatalf("RequestAccess() on live grant error = %v", err)
	}
	if live.Status != models.PermissionApproved {
		t.Errorf("live grant status = %s, want approved untouched", live.Status)
	}
	if n := env.notifier.count(notify.EventPermissionRequested); n != 1 {
		t.Errorf("published %d request events, want 1", n)
	}

	env.clock.Advance(31 * 24 * time.Hour)

	reopened, err := env.permissionSvc.RequestAccess(ctx, viewer, private.ID, "once more")
	if err != nil {
		t.Fatalf("RequestAccess() after expiry error = %v", err)
	}
	if reopened.ID != perm.ID || reopened.Status != models.PermissionPending {
		t.Fatalf("reopened = %+v, want same record back to pending", reopened)
	}
	if reopened.ExpiresAt != nil || reopened.RespondedAt != nil || reopened.Message != "once more" {
		t.Errorf("reopened record kept stale fields: %+v", reopened)
	}
	if n := env.notifier.count(notify.EventPermissionRequested); n != 2 {
		t.Errorf("published %d request events, want 2", n)
	}

	renewed, err := env.permissionSvc.Respond(ctx, owner, perm.ID, models.PermissionApproved, "")
	if err != nil {
		t.Fatalf("Respond() after reopen error = %v", err)
	}
	if !renewed.Grants(env.clock.Now()) {
		t.Error("renewed grant should be live")
	}
	if !privateVisible(t, env, viewer, owner, private.ID) {
		t.Error("viewer should see the private photo again")
	}
}

func privateVisible(t *testing.T, env *testEnv, viewer, owner models.UserID, photoID string) bool {
	t.Helper()
	photos, err := env.photoSvc.VisiblePhotos(context.Background(), viewer, owner)
	if err != nil {
		t.Fatalf("VisiblePhotos() error = %v", err)
	}
	for _, p := range photos {
		if p.ID == photoID {
			return p.HasPermission && p.URL != ""
		}
	}
	return false
}

func TestGrantAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, models.TierFree, 10)
	viewer := env.addUser(t, models.TierFree, 10)
	public := env.upload(t, owner, models.VisibilityPublic)
	private := env.upload(t, owner, models.VisibilityPrivate)

	if _, err := env.permissionSvc.Grant(ctx, viewer, private.ID, owner, ""); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("non-owner grant: error = %v, want ErrForbidden", err)
	}
	if _, err := env.permissionSvc.Grant(ctx, owner, private.ID, owner, ""); !errors.Is(err, models.ErrSelfReference) {
		t.Errorf("self grant: error = %v, want ErrSelfReference", err)
	}
	var serr *models.InvalidStateError
	if _, err := env.permissionSvc.Grant(ctx, owner, public.ID, viewer, ""); !errors.As(err, &serr) {
		t.Errorf("public grant: error = %v, want InvalidStateError", err)
	}
	if _, err := env.permissionSvc.Grant(ctx, owner, private.ID, models.NewUserID(), ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown user grant: error = %v, want ErrNotFound", err)
	}

	perm, err := env.permissionSvc.Grant(ctx, owner, private.ID, viewer, "")
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if !privateVisible(t, env, viewer, owner, private.ID) {
		t.Fatal("grant should expose the photo")
	}

	revoked, err := env.permissionSvc.Revoke(ctx, owner, perm.ID)
	if err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if revoked.Status != models.PermissionRejected {
		t.Errorf("revoked status = %s, want rejected", revoked.Status)
	}
	if privateVisible(t, env, viewer, owner, private.ID) {
		t.Fatal("revoked grant should hide the photo")
	}
	if last := env.notifier.last(); last.event != notify.EventPermissionRevoked || last.target != viewer {
		t.Errorf("last event = %s to %s, want revoked to viewer", last.event, last.target)
	}

	if _, err := env.permissionSvc.Revoke(ctx, owner, perm.ID); !errors.As(err, &serr) {
		t.Errorf("second revoke: error = %v, want InvalidStateError", err)
	}
}

// failingTransitions fails transitions for one record
type failingTransitions struct {
	PermissionStore
	failID string
}

func (s *failingTransitions) Transition(ctx context.Context, id string, from, to models.PermissionStatus, msg string, at time.Time, expiresAt *time.Time) (*models.PermissionRequest, error) {
	if id == s.failID {
		return nil, errors.New("connection reset")
	}
	return s.PermissionStore.Transition(ctx, id, from, to, msg, at, expiresAt)
}

func TestApproveAllPendingContinuesPastFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, models.TierFree, 10)
	env.upload(t, owner, models.VisibilityPublic)
	private := env.upload(t, owner, models.VisibilityPrivate)

	var perms []*models.PermissionRequest
	for i := 0; i < 3; i++ {
		requester := env.addUser(t, models.TierFree, 10)
		perm, err := env.permissionSvc.RequestAccess(ctx, requester, private.ID, "")
		if err != nil {
			t.Fatalf("RequestAccess() error = %v", err)
		}
		perms = append(perms, perm)
	}

	env.permissionSvc.permissions = &failingTransitions{PermissionStore: env.permissions, failID: perms[1].ID}

	n, err := env.permissionSvc.ApproveAllPending(ctx, owner, nil)
	if err != nil {
		t.Fatalf("ApproveAllPending() error = %v", err)
	}
	if n != 2 {
		t.Errorf("approved %d, want 2", n)
	}

	pending, err := env.permissionSvc.ListIncoming(ctx, owner, models.PermissionPending)
	if err != nil {
		t.Fatalf("ListIncoming() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != perms[1].ID {
		t.Errorf("pending = %v, want only the failed record", pending)
	}
}

func TestApproveAllPendingForOneRequester(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, models.TierFree, 10)
	first := env.addUser(t, models.TierFree, 10)
	second := env.addUser(t, models.TierFree, 10)
	env.upload(t, owner, models.VisibilityPublic)
	a := env.upload(t, owner, models.VisibilityPrivate)
	b := env.upload(t, owner, models.VisibilityPrivate)

	for _, req := range []struct {
		user  models.UserID
		photo string
	}{{first, a.ID}, {first, b.ID}, {second, a.ID}} {
		if _, err := env.permissionSvc.RequestAccess(ctx, req.user, req.photo, ""); err != nil {
			t.Fatalf("RequestAccess() error = %v", err)
		}
	}

	n, err := env.permissionSvc.ApproveAllPending(ctx, owner, &first)
	if err != nil {
		t.Fatalf("ApproveAllPending() error = %v", err)
	}
	if n != 2 {
		t.Errorf("approved %d, want 2", n)
	}
	approved, err := env.permissionSvc.ListIncoming(ctx, owner, models.PermissionApproved)
	if err != nil {
		t.Fatalf("ListIncoming() error = %v", err)
	}
	for _, p := range approved {
		if p.RequesterID != first {
			t.Errorf("approved request from %s", p.RequesterID)
		}
	}
}

func TestListIncomingRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addUser(t, models.TierFree, 10)

	_, err := env.permissionSvc.ListIncoming(context.Background(), owner, "expired")
	if !errors.Is(err, models.ErrInvalidStatus) {
		t.Fatalf("error = %v, want ErrInvalidStatus", err)
	}
}
