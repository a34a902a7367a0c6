package http

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"candidash/internal/domain"
	"candidash/internal/repository"
	"candidash/internal/service"
	"candidash/internal/storage"
)

const testTOTPKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func (m *mockUserRepo) update(id string, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if _, err := m.find(func(u domain.User) bool { return u.Email == user.Email }); err == nil {
		return repository.ErrDuplicate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *mockUserRepo) GetByResetTokenHash(_ context.Context, tokenHash string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ResetTokenHash != "" && u.ResetTokenHash == tokenHash })
}

func (m *mockUserRepo) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id, email, username string) error {
	if other, err := m.find(func(u domain.User) bool { return u.Email == email }); err == nil && other.ID != id {
		return repository.ErrDuplicate
	}
	return m.update(id, func(u *domain.User) {
		u.Email = email
		u.Username = username
	})
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return m.update(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (m *mockUserRepo) SetRefreshToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return m.update(id, func(u *domain.User) {
		u.RefreshTokenHash = tokenHash
		u.RefreshTokenExpires = &expiresAt
	})
}

func (m *mockUserRepo) RotateRefreshToken(_ context.Context, id, previousHash, tokenHash string, expiresAt time.Time) (bool, error) {
	rotated := false
	err := m.update(id, func(u *domain.User) {
		if u.RefreshTokenHash != previousHash {
			return
		}
		u.RefreshTokenHash = tokenHash
		u.RefreshTokenExpires = &expiresAt
		rotated = true
	})
	return rotated, err
}

func (m *mockUserRepo) ClearRefreshToken(_ context.Context, id string) error {
	return m.update(id, func(u *domain.User) {
		u.RefreshTokenHash = ""
		u.RefreshTokenExpires = nil
	})
}

func (m *mockUserRepo) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return m.update(id, func(u *domain.User) {
		u.ResetTokenHash = tokenHash
		u.ResetTokenExpires = &expiresAt
	})
}

func (m *mockUserRepo) ResetPassword(_ context.Context, id, passwordHash string) error {
	return m.update(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.ResetTokenHash = ""
		u.ResetTokenExpires = nil
		u.RefreshTokenHash = ""
		u.RefreshTokenExpires = nil
	})
}

func (m *mockUserRepo) SetTOTPSecret(_ context.Context, id, ciphertext string) error {
	return m.update(id, func(u *domain.User) { u.TOTPSecret = ciphertext })
}

func (m *mockUserRepo) EnableTOTP(_ context.Context, id string, recoveryHashes []string) error {
	return m.update(id, func(u *domain.User) {
		u.TOTPEnabled = true
		u.TOTPRecoveryCodes = slices.Clone(recoveryHashes)
	})
}

func (m *mockUserRepo) DisableTOTP(_ context.Context, id string) error {
	return m.update(id, func(u *domain.User) {
		u.TOTPEnabled = false
		u.TOTPSecret = ""
		u.TOTPRecoveryCodes = nil
	})
}

func (m *mockUserRepo) ReplaceRecoveryCodes(_ context.Context, id string, expected, next []string) (bool, error) {
	replaced := false
	err := m.update(id, func(u *domain.User) {
		if slices.Equal(u.TOTPRecoveryCodes, expected) {
			u.TOTPRecoveryCodes = slices.Clone(next)
			replaced = true
		}
	})
	return replaced, err
}

type mockJobTrackRepo struct {
	mu     sync.Mutex
	tracks map[string]domain.JobTrack
}

func newMockJobTrackRepo() *mockJobTrackRepo {
	return &mockJobTrackRepo{tracks: make(map[string]domain.JobTrack)}
}

func (m *mockJobTrackRepo) Create(_ context.Context, track domain.JobTrack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[track.ID] = track
	return nil
}

func (m *mockJobTrackRepo) CreateWithReminder(_ context.Context, track domain.JobTrack, reminder domain.Reminder) error {
	track.Reminder = &reminder
	return m.Create(context.Background(), track)
}

func (m *mockJobTrackRepo) GetByID(_ context.Context, id string) (domain.JobTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[id]
	if !ok {
		return domain.JobTrack{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockJobTrackRepo) ListByUser(_ context.Context, userID string, status domain.JobStatus) ([]domain.JobTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.JobTrack
	for _, t := range m.tracks {
		if t.UserID == userID && (status == "" || t.Status == status) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockJobTrackRepo) Update(_ context.Context, track domain.JobTrack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracks[track.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.tracks[track.ID] = track
	return nil
}

func (m *mockJobTrackRepo) UpdateWithReminder(ctx context.Context, track domain.JobTrack, reminder domain.Reminder) error {
	track.Reminder = &reminder
	return m.Update(ctx, track)
}

func (m *mockJobTrackRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracks[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.tracks, id)
	return nil
}

func (m *mockJobTrackRepo) SetDocument(_ context.Context, id string, kind domain.DocumentKind, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if kind == domain.DocumentCV {
		t.CVFileName = fileName
	} else {
		t.LMFileName = fileName
	}
	m.tracks[id] = t
	return nil
}

type mockReminderRepo struct {
	mu        sync.Mutex
	reminders map[string]domain.Reminder
	tracks    *mockJobTrackRepo
}

func newMockReminderRepo(tracks *mockJobTrackRepo) *mockReminderRepo {
	return &mockReminderRepo{reminders: make(map[string]domain.Reminder), tracks: tracks}
}

func (m *mockReminderRepo) Create(_ context.Context, reminder domain.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reminders {
		if r.JobTrackID == reminder.JobTrackID {
			return repository.ErrDuplicate
		}
	}
	m.reminders[reminder.ID] = reminder
	return nil
}

func (m *mockReminderRepo) GetByID(_ context.Context, id string) (domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return domain.Reminder{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockReminderRepo) list(match func(domain.Reminder) bool) []domain.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reminder
	for _, r := range m.reminders {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextReminderAt.Before(out[j].NextReminderAt) })
	return out
}

func (m *mockReminderRepo) ListByJobTrack(_ context.Context, jobTrackID string) ([]domain.Reminder, error) {
	return m.list(func(r domain.Reminder) bool { return r.JobTrackID == jobTrackID }), nil
}

func (m *mockReminderRepo) ListActiveByUser(ctx context.Context, userID string) ([]domain.Reminder, error) {
	tracks, _ := m.tracks.ListByUser(ctx, userID, "")
	owned := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		owned[t.ID] = true
	}
	return m.list(func(r domain.Reminder) bool { return r.IsActive && owned[r.JobTrackID] }), nil
}

func (m *mockReminderRepo) Update(_ context.Context, reminder domain.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reminders[reminder.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.reminders[reminder.ID] = reminder
	return nil
}

func (m *mockReminderRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reminders[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.reminders, id)
	return nil
}

func (m *mockReminderRepo) Stats(_ context.Context, now, _, _ time.Time) (domain.ReminderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st domain.ReminderStats
	for _, r := range m.reminders {
		if r.IsActive {
			st.TotalActive++
			if !r.NextReminderAt.After(now) {
				st.DueNow++
			}
		}
	}
	return st, nil
}

func (m *mockReminderRepo) ListDue(context.Context, time.Time, int) ([]domain.DueReminder, error) {
	return nil, nil
}

func (m *mockReminderRepo) MarkSent(_ context.Context, id string, sentAt, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	r.LastSentAt = &sentAt
	r.NextReminderAt = next
	m.reminders[id] = r
	return nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjectStore) Put(_ context.Context, bucket, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = bytes.Clone(body)
	return nil
}

func (f *fakeObjectStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	return nil
}

// testServer arma el router completo sobre repositorios en memoria.
type testServer struct {
	router *gin.Engine
	users  *mockUserRepo
	tracks *mockJobTrackRepo
	store  *fakeObjectStore
	jwt    *service.JWTService
	hasher *service.PasswordHasher
}

func newTestServer(t *testing.T, cookies CookieConfig, limits RateLimits) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	cipher, err := service.NewSecretCipher(testTOTPKey)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	users := newMockUserRepo()
	tracks := newMockJobTrackRepo()
	store := &fakeObjectStore{objects: make(map[string][]byte)}
	hasher := service.NewPasswordHasher(bcrypt.MinCost)
	jwtSvc := service.NewJWTService("test-secret")

	authSvc := service.NewAuthService(logger, users, hasher, jwtSvc, service.NewTOTPService(cipher, hasher, "CandiDash"), nil, nil)
	userSvc := service.NewUserService(logger, users, hasher, nil, nil, "http://localhost:3000")
	jobTrackSvc := service.NewJobTrackService(logger, tracks)
	documentSvc := service.NewDocumentService(logger, jobTrackSvc, tracks, store, service.DocumentBuckets{CV: "cv", LM: "lm"})
	reminderSvc := service.NewReminderService(logger, newMockReminderRepo(tracks), jobTrackSvc, nil)

	authHandler := NewAuthHandler(logger, authSvc, cookies)
	router := NewRouter(logger, jwtSvc, limits, Handlers{
		Auth:      authHandler,
		TOTP:      NewTOTPHandler(logger, authSvc, authHandler),
		Users:     NewUserHandler(logger, userSvc),
		JobTracks: NewJobTrackHandler(logger, jobTrackSvc),
		Documents: NewDocumentHandler(logger, documentSvc),
		Reminders: NewReminderHandler(logger, reminderSvc),
	})

	return &testServer{router: router, users: users, tracks: tracks, store: store, jwt: jwtSvc, hasher: hasher}
}

func (s *testServer) seedUser(t *testing.T, id, email, password string) domain.User {
	t.Helper()
	hash, err := s.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := domain.User{ID: id, Email: email, PasswordHash: hash, Role: domain.RoleUser}
	if err := s.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (s *testServer) accessToken(t *testing.T, userID string) string {
	t.Helper()
	return s.accessTokenWithRole(t, userID, domain.RoleUser)
}

func (s *testServer) accessTokenWithRole(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	token, err := s.jwt.IssueAccess(domain.User{ID: userID, Role: role})
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	return token.Token
}
