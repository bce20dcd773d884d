package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"interaction-backend/internal/models"
	"interaction-backend/internal/notify"
	"interaction-backend/internal/repository/memory"
	"interaction-backend/internal/storage"
)

type publishedEvent struct {
	event   notify.Event
	target  models.UserID
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordingNotifier) Publish(_ context.Context, event notify.Event, target models.UserID, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{event: event, target: target, payload: payload})
}

func (n *recordingNotifier) count(event notify.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.event == event {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) last() publishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return publishedEvent{}
	}
	return n.events[len(n.events)-1]
}

type recordingBlobs struct {
	mu      sync.Mutex
	deleted []string
}

func (b *recordingBlobs) PresignUpload(_ context.Context, key, _ string) (*storage.PresignedUpload, error) {
	return &storage.PresignedUpload{
		UploadURL: "https://upload.test/" + key,
		ObjectURL: "https://cdn.test/" + key,
		ExpiresIn: 300,
	}, nil
}

func (b *recordingBlobs) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		if k != "" {
			b.deleted = append(b.deleted, k)
		}
	}
	return nil
}

// testEnv wires every service to fresh in-memory stores
type testEnv struct {
	users       *memory.Users
	photos      *memory.Photos
	permissions *memory.Permissions
	likes       *memory.Likes
	messages    *memory.Messages
	notifier    *recordingNotifier
	blobs       *recordingBlobs
	clock       *fakeClock

	photoSvc      *PhotoService
	permissionSvc *PermissionService
	likeSvc       *LikeService
	messageSvc    *MessageService
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := memory.NewUsers()
	env := &testEnv{
		users:       users,
		photos:      memory.NewPhotos(),
		permissions: memory.NewPermissions(),
		likes:       memory.NewLikes(users),
		messages:    memory.NewMessages(),
		notifier:    &recordingNotifier{},
		blobs:       &recordingBlobs{},
		clock:       &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}

	env.photoSvc = NewPhotoService(env.users, env.photos, env.permissions, env.blobs)
	env.photoSvc.now = env.clock.Now
	env.permissionSvc = NewPermissionService(env.users, env.photos, env.permissions, env.notifier, 30*24*time.Hour)
	env.permissionSvc.now = env.clock.Now
	env.likeSvc = NewLikeService(env.users, env.likes, env.notifier)
	env.likeSvc.now = env.clock.Now
	env.messageSvc = NewMessageService(env.users, env.messages, env.blobs, nil, env.notifier, MessageLimits{
		MaxLength:      2000,
		MaxEmojiLength: 10,
		PageSize:       50,
	})
	env.messageSvc.now = env.clock.Now
	return env
}

func (e *testEnv) addUser(t *testing.T, tier models.AccountTier, likesRemaining int) models.UserID {
	t.Helper()
	id := models.NewUserID()
	e.users.Add(&models.User{
		ID:                  id,
		Tier:                tier,
		DailyLikesRemaining: likesRemaining,
		LikesResetAt:        time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		CreatedAt:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	return id
}

func (e *testEnv) upload(t *testing.T, owner models.UserID, visibility models.Visibility) *models.Photo {
	t.Helper()
	resp, err := e.photoSvc.Upload(context.Background(), owner, UploadRequest{
		ContentType: "image/jpeg",
		Visibility:  visibility,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	return resp.Photo
}
