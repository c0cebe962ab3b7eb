package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"storyloom/backend/internal/notification/domain"
	storydomain "storyloom/backend/internal/story/domain"
	userdomain "storyloom/backend/internal/user/domain"
)

type memNotificationRepo struct {
	mu         sync.Mutex
	rows       map[string]*domain.Notification
	users      *memUserRepo
	stories    *memStoryRepo
	createErr  error
	listErr    error
	listCalls  int
	lastListTo string
	lastLimit  int
	lastOffset int
}

func newMemNotificationRepo(users *memUserRepo, stories *memStoryRepo) *memNotificationRepo {
	return &memNotificationRepo{rows: make(map[string]*domain.Notification), users: users, stories: stories}
}

func (r *memNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *memNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *memNotificationRepo) ListForRecipient(ctx context.Context, toUserID string, limit, offset int) ([]*domain.View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	r.lastListTo, r.lastLimit, r.lastOffset = toUserID, limit, offset
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*domain.View, 0)
	for _, n := range r.rows {
		if n.ToUser != toUserID {
			continue
		}
		from, _ := r.users.GetByID(ctx, n.FromUser)
		story, _ := r.stories.GetByID(ctx, n.StoryID)
		v := &domain.View{ID: n.ID, ToUser: n.ToUser, Type: n.Type, CreatedAt: n.CreatedAt}
		if from != nil {
			v.FromUser = domain.UserRef{ID: from.ID, Username: from.Username, Email: from.Email}
		}
		if story != nil {
			v.Story = domain.StoryRef{ID: story.ID, Title: story.Title}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memNotificationRepo) DeleteForRecipient(ctx context.Context, id, toUserID string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok || n.ToUser != toUserID {
		return nil, nil
	}
	delete(r.rows, id)
	return n, nil
}

func (r *memNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memNotificationRepo) forUser(userID string) []*domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.rows {
		if n.ToUser == userID {
			out = append(out, n)
		}
	}
	return out
}

func (r *memNotificationRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[string]*domain.Notification, len(r.rows))
	for k, v := range r.rows {
		saved[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.rows = saved
	}
}

type memUserRepo struct {
	mu       sync.Mutex
	users    map[string]*userdomain.User
	getErr   error
	getCalls int
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.users[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

type memStoryRepo struct {
	mu            sync.Mutex
	stories       map[string]*storydomain.Story
	collaborators []storydomain.Collaborator
}

func (r *memStoryRepo) GetByID(ctx context.Context, id string) (*storydomain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stories[id], nil
}

func (r *memStoryRepo) AddCollaborator(ctx context.Context, c *storydomain.Collaborator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stories[c.StoryID]; !ok {
		return storydomain.ErrStoryNotFound
	}
	r.collaborators = append(r.collaborators, *c)
	return nil
}

func (r *memStoryRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := append([]storydomain.Collaborator(nil), r.collaborators...)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.collaborators = saved
	}
}

type memTx struct {
	mu     sync.Mutex
	stores []interface{ snapshot() func() }
}

func (t *memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var restores []func()
	for _, s := range t.stores {
		restores = append(restores, s.snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

type chanPublisher struct {
	ch  chan *domain.Notification
	err error
}

func (p *chanPublisher) Publish(ctx context.Context, n *domain.Notification) error {
	p.ch <- n
	return p.err
}

type fixture struct {
	svc       *NotificationService
	repo      *memNotificationRepo
	users     *memUserRepo
	stories   *memStoryRepo
	published *chanPublisher
}

func newFixture() *fixture {
	users := &memUserRepo{users: map[string]*userdomain.User{
		"sender1": {ID: "sender1", Email: "sender@example.com", Username: "sender"},
		"user123": {ID: "user123", Email: "reader@example.com", Username: "reader"},
	}}
	stories := &memStoryRepo{stories: map[string]*storydomain.Story{
		"story1": {ID: "story1", OwnerID: "sender1", Title: "The Lighthouse"},
	}}
	repo := newMemNotificationRepo(users, stories)
	pub := &chanPublisher{ch: make(chan *domain.Notification, 4)}
	tx := &memTx{stores: []interface{ snapshot() func() }{repo, stories}}
	return &fixture{
		svc:       NewNotificationService(repo, users, stories, tx, pub, nil),
		repo:      repo,
		users:     users,
		stories:   stories,
		published: pub,
	}
}

func (f *fixture) awaitPublished(t *testing.T) *domain.Notification {
	t.Helper()
	select {
	case n := <-f.published.ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for publish")
		return nil
	}
}

func TestCreateNotification_UnknownRecipientWritesNothing(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateNotification(context.Background(), CreateInput{
		FromUserID: "sender1",
		ToEmail:    "ghost@x.com",
		StoryID:    "story1",
	})
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("err = %v, want ErrRecipientNotFound", err)
	}
	if f.repo.count() != 0 {
		t.Errorf("notifications = %d, want 0", f.repo.count())
	}
}

func TestCreateNotification_ResolvesRecipientByEmail(t *testing.T) {
	f := newFixture()
	n, err := f.svc.CreateNotification(context.Background(), CreateInput{
		FromUserID: "sender1",
		ToEmail:    " Reader@Example.com ",
		StoryID:    "story1",
	})
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if n.ToUser != "user123" {
		t.Errorf("toUser = %q, want user123", n.ToUser)
	}
	if n.Type != domain.TypeCollaborationInvite {
		t.Errorf("type = %q, want default invite", n.Type)
	}
	if n.ID == "" || n.CreatedAt.IsZero() {
		t.Errorf("id/createdAt not set: %+v", n)
	}
	if got := f.awaitPublished(t); got.ID != n.ID {
		t.Errorf("published %q, want %q", got.ID, n.ID)
	}
}

func TestCreateNotification_ResolvesRecipientByID(t *testing.T) {
	f := newFixture()
	n, err := f.svc.CreateNotification(context.Background(), CreateInput{
		FromUserID: "sender1",
		ToUserID:   "user123",
		StoryID:    "story1",
		Type:       domain.TypeComment,
	})
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if n.ToUser != "user123" || n.Type != domain.TypeComment {
		t.Errorf("notification = %+v", n)
	}
	if n.ReadAt != nil {
		t.Errorf("new notification ReadAt = %v, want nil", n.ReadAt)
	}
}

func TestCreateNotification_Validation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"no sender", CreateInput{ToUserID: "user123", StoryID: "story1"}, ErrUserIDRequired},
		{"no story", CreateInput{FromUserID: "sender1", ToUserID: "user123"}, ErrStoryIDRequired},
		{"no recipient", CreateInput{FromUserID: "sender1", StoryID: "story1"}, ErrRecipientRequired},
		{"bad type", CreateInput{FromUserID: "sender1", ToUserID: "user123", StoryID: "story1", Type: "poke"}, ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateNotification(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if f.repo.count() != 0 {
		t.Error("invalid input must not write")
	}
}

func TestCreateNotification_StoreErrorsPropagate(t *testing.T) {
	f := newFixture()
	lookupErr := errors.New("users collection unavailable")
	f.users.getErr = lookupErr
	if _, err := f.svc.CreateNotification(context.Background(), CreateInput{FromUserID: "sender1", ToEmail: "reader@example.com", StoryID: "story1"}); !errors.Is(err, lookupErr) {
		t.Errorf("lookup err = %v, want %v", err, lookupErr)
	}

	f.users.getErr = nil
	writeErr := errors.New("write failed")
	f.repo.createErr = writeErr
	if _, err := f.svc.CreateNotification(context.Background(), CreateInput{FromUserID: "sender1", ToEmail: "reader@example.com", StoryID: "story1"}); !errors.Is(err, writeErr) {
		t.Errorf("create err = %v, want %v", err, writeErr)
	}
}

func TestCreateNotification_PublishFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture()
	f.published.err = errors.New("broker down")
	n, err := f.svc.CreateNotification(context.Background(), CreateInput{FromUserID: "sender1", ToUserID: "user123", StoryID: "story1"})
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	f.awaitPublished(t)
	if stored, _ := f.repo.GetByID(context.Background(), n.ID); stored == nil {
		t.Error("notification should be stored")
	}
}

func TestGetNotificationsForUser_RequiresUserIDWithoutQuerying(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetNotificationsForUser(context.Background(), "", 0, 0)
	if !errors.Is(err, ErrUserIDRequired) {
		t.Fatalf("err = %v, want ErrUserIDRequired", err)
	}
	if f.repo.listCalls != 0 {
		t.Errorf("list calls = %d, want 0", f.repo.listCalls)
	}
}

func TestGetNotificationsForUser_SingleFilteredQueryNewestFirst(t *testing.T) {
	f := newFixture()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		_ = f.repo.Create(context.Background(), &domain.Notification{
			ID: id, FromUser: "sender1", ToUser: "user123", StoryID: "story1",
			Type: domain.TypeLike, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	_ = f.repo.Create(context.Background(), &domain.Notification{ID: "other", FromUser: "user123", ToUser: "sender1", StoryID: "story1", Type: domain.TypeLike, CreatedAt: base})

	views, err := f.svc.GetNotificationsForUser(context.Background(), "user123", 0, 0)
	if err != nil {
		t.Fatalf("GetNotificationsForUser: %v", err)
	}
	if f.repo.listCalls != 1 || f.repo.lastListTo != "user123" {
		t.Errorf("calls = %d filter = %q", f.repo.listCalls, f.repo.lastListTo)
	}
	if f.repo.lastLimit != DefaultListLimit || f.repo.lastOffset != 0 {
		t.Errorf("limit/offset = %d/%d", f.repo.lastLimit, f.repo.lastOffset)
	}
	if len(views) != 2 || views[0].ID != "new" {
		t.Fatalf("views = %+v", views)
	}
	if views[0].FromUser.Username != "sender" || views[0].Story.Title != "The Lighthouse" {
		t.Errorf("view not joined: %+v", views[0])
	}
}

func TestGetNotificationsForUser_LimitClamp(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.GetNotificationsForUser(context.Background(), "user123", 5000, -3); err != nil {
		t.Fatal(err)
	}
	if f.repo.lastLimit != MaxListLimit || f.repo.lastOffset != 0 {
		t.Errorf("limit/offset = %d/%d, want %d/0", f.repo.lastLimit, f.repo.lastOffset, MaxListLimit)
	}
}

func TestGetNotificationsForUser_StoreErrorPropagates(t *testing.T) {
	f := newFixture()
	listErr := errors.New("timeout")
	f.repo.listErr = listErr
	if _, err := f.svc.GetNotificationsForUser(context.Background(), "user123", 10, 0); !errors.Is(err, listErr) {
		t.Errorf("err = %v, want %v", err, listErr)
	}
}

func invite(t *testing.T, f *fixture) *domain.Notification {
	t.Helper()
	n, err := f.svc.CreateNotification(context.Background(), CreateInput{FromUserID: "sender1", ToUserID: "user123", StoryID: "story1"})
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	f.awaitPublished(t)
	return n
}

func boolPtr(b bool) *bool { return &b }

func TestRespond_AcceptAddsCollaboratorAndNotifiesSender(t *testing.T) {
	f := newFixture()
	n := invite(t, f)

	resp, err := f.svc.Respond(context.Background(), RespondInput{NotificationID: n.ID, UserID: "user123", Accept: boolPtr(true), Character: "Navigator"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp == nil || resp.Type != domain.TypeInviteAccepted || resp.ToUser != "sender1" || resp.FromUser != "user123" {
		t.Fatalf("response = %+v", resp)
	}
	if len(f.stories.collaborators) != 1 || f.stories.collaborators[0].Character != "Navigator" {
		t.Errorf("collaborators = %+v", f.stories.collaborators)
	}
	if got, _ := f.repo.GetByID(context.Background(), n.ID); got != nil {
		t.Error("original notification should be deleted")
	}
	if len(f.repo.forUser("sender1")) != 1 {
		t.Error("sender should have one response notification")
	}
	if got := f.awaitPublished(t); got.ID != resp.ID {
		t.Errorf("published %q, want response %q", got.ID, resp.ID)
	}
}

func TestRespond_Reject(t *testing.T) {
	f := newFixture()
	n := invite(t, f)

	resp, err := f.svc.Respond(context.Background(), RespondInput{NotificationID: n.ID, UserID: "user123", Accept: boolPtr(false)})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp == nil || resp.Type != domain.TypeInviteRejected {
		t.Fatalf("response = %+v", resp)
	}
	if len(f.stories.collaborators) != 0 {
		t.Error("reject must not add a collaborator")
	}
}

func TestRespond_DismissOnlyDeletes(t *testing.T) {
	f := newFixture()
	n := invite(t, f)

	resp, err := f.svc.Respond(context.Background(), RespondInput{NotificationID: n.ID, UserID: "user123"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp != nil {
		t.Errorf("dismiss should not create a response, got %+v", resp)
	}
	if f.repo.count() != 0 {
		t.Errorf("notifications = %d, want 0", f.repo.count())
	}
}

func TestRespond_SecondAnswerIsRejected(t *testing.T) {
	f := newFixture()
	n := invite(t, f)

	if _, err := f.svc.Respond(context.Background(), RespondInput{NotificationID: n.ID, UserID: "user123", Accept: boolPtr(true), Character: "Navigator"}); err != nil {
		t.Fatalf("first Respond: %v", err)
	}
	f.awaitPublished(t)
	_, err := f.svc.Respond(context.Background(), RespondInput{NotificationID: n.ID, UserID: "user123", Accept: boolPtr(false)})
	if !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Fatalf("second Respond err = %v, want ErrNotificationNotFound", err)
	}
	if got := len(f.repo.forUser("sender1")); got != 1 {
		t.Errorf("sender responses = %d, want 1", got)
	}
	if len(f.stories.collaborators) != 1 {
		t.Errorf("collaborators = %+v", f.stories.collaborators)
	}
}

func TestRespond_ConcurrentAnswersCreateOneResponse(t *testing.T) {
	f := newFixture()
	n := invite(t, f)

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		notFound int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(accept bool) {
			defer wg.Done()
			_, err := f.svc.Respond(context.Background(), RespondInput{NotificationID: n.ID, UserID: "user123", Accept: boolPtr(accept), Character: "Navigator"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrNotificationNotFound):
				notFound++
			default:
				t.Errorf("Respond: %v", err)
			}
		}(i%2 == 0)
	}
	wg.Wait()
	if ok != 1 || notFound != callers-1 {
		t.Errorf("ok = %d notFound = %d, want 1 and %d", ok, notFound, callers-1)
	}
	if got := len(f.repo.forUser("sender1")); got != 1 {
		t.Errorf("sender responses = %d, want 1", got)
	}
}

func TestRespond_Errors(t *testing.T) {
	f := newFixture()
	n := invite(t, f)

	tests := []struct {
		name string
		in   RespondInput
		want error
	}{
		{"no user", RespondInput{NotificationID: n.ID}, ErrUserIDRequired},
		{"no id", RespondInput{UserID: "user123"}, ErrNotificationIDRequired},
		{"accept without character", RespondInput{NotificationID: n.ID, UserID: "user123", Accept: boolPtr(true), Character: "  "}, ErrCharacterRequired},
		{"not recipient", RespondInput{NotificationID: n.ID, UserID: "sender1"}, domain.ErrNotificationNotFound},
		{"missing", RespondInput{NotificationID: "nope", UserID: "user123"}, domain.ErrNotificationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Respond(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if got, _ := f.repo.GetByID(context.Background(), n.ID); got == nil {
		t.Error("failed responses must not delete the notification")
	}
}

func TestRespond_AcceptMissingStoryRollsBack(t *testing.T) {
	f := newFixture()
	n := invite(t, f)
	delete(f.stories.stories, "story1")

	_, err := f.svc.Respond(context.Background(), RespondInput{NotificationID: n.ID, UserID: "user123", Accept: boolPtr(true), Character: "Navigator"})
	if !errors.Is(err, storydomain.ErrStoryNotFound) {
		t.Fatalf("err = %v, want ErrStoryNotFound", err)
	}
	if got, _ := f.repo.GetByID(context.Background(), n.ID); got == nil {
		t.Error("notification should survive a rolled back response")
	}
	if len(f.repo.forUser("sender1")) != 0 {
		t.Error("no response should be stored")
	}
}
