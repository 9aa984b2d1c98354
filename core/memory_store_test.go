package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memoryUsers is an in-memory UserRepository with a settable clock.
type memoryUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*User
	now    time.Time
	// failNow makes Now return an error.
	failNow bool
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byID: map[int64]*User{},
		now:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memoryUsers) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func cloneUser(u *User) *User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	c.PasswordSalt = append([]byte(nil), u.PasswordSalt...)
	c.Token = append([]byte(nil), u.Token...)
	return &c
}

func (m *memoryUsers) FindByName(_ context.Context, name string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Name == name {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memoryUsers) Persist(_ context.Context, id int64, f UserFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	if f.Name != nil {
		u.Name = *f.Name
	}
	if f.Role != nil {
		u.Role = *f.Role
	}
	if f.PasswordHash != nil {
		u.PasswordHash = append([]byte(nil), f.PasswordHash...)
	}
	if f.PasswordSalt != nil {
		u.PasswordSalt = append([]byte(nil), f.PasswordSalt...)
	}
	if f.TokenTimestamp != nil {
		u.TokenTimestamp = *f.TokenTimestamp
	}
	if f.Token != nil {
		u.Token = append([]byte(nil), f.Token...)
	}
	return nil
}

func (m *memoryUsers) Now(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNow {
		return time.Time{}, errors.New("clock unavailable")
	}
	return m.now, nil
}

func (m *memoryUsers) Create(_ context.Context, u *User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Name == u.Name {
			return 0, ErrAlreadyExisting
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = m.now
	m.byID[u.ID] = cloneUser(u)
	return u.ID, nil
}

func (m *memoryUsers) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memoryUsers) HasRole(_ context.Context, minRole int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Role >= minRole {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUsers) List(_ context.Context, page, perPage int) ([]UserListItem, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	start := (page - 1) * perPage
	items := []UserListItem{}
	for i := start; i < len(ids) && i < start+perPage; i++ {
		u := m.byID[ids[i]]
		items = append(items, UserListItem{ID: u.ID, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt})
	}
	return items, len(ids), nil
}

// stored returns a copy of the persisted row.
func (m *memoryUsers) stored(id int64) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return cloneUser(u)
	}
	return nil
}

// testEnv bundles the collaborators used across the auth tests.
type testEnv struct {
	store    *memoryUsers
	hasher   *PasswordHasher
	issuer   *TokenIssuer
	verifier *Verifier
	users    *UserService
}

const (
	testTokenLength = 64
	testTTL         = 24 * time.Hour
)

func newTestEnv() *testEnv {
	store := newMemoryUsers()
	hasher, err := NewPasswordHasher(HashSHA3_512, 64)
	if err != nil {
		panic(err)
	}
	issuer := NewTokenIssuer(store, testTokenLength)
	return &testEnv{
		store:    store,
		hasher:   hasher,
		issuer:   issuer,
		verifier: NewVerifier(store, hasher, testTTL),
		users:    NewUserService(store, hasher, issuer),
	}
}

func (e *testEnv) register(name, password string, role int) *User {
	u, err := e.users.Register(context.Background(), name, password, role)
	if err != nil {
		panic(err)
	}
	return u
}

// recordingTransport captures challenges written by an AuthManager.
type recordingTransport struct {
	header     string
	challenges []string
}

func (t *recordingTransport) AuthorizationHeader() string { return t.header }

func (t *recordingTransport) Challenge(h string) { t.challenges = append(t.challenges, h) }

func (t *recordingTransport) last() string {
	if len(t.challenges) == 0 {
		return ""
	}
	return t.challenges[len(t.challenges)-1]
}
