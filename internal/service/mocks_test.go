package service

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"candidash/internal/domain"
	"candidash/internal/email"
	"candidash/internal/repository"
	"candidash/internal/storage"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func cloneUser(u domain.User) domain.User {
	u.TOTPRecoveryCodes = slices.Clone(u.TOTPRecoveryCodes)
	return u
}

func (m *mockUserRepo) put(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
}

func (m *mockUserRepo) get(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneUser(m.users[id])
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

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return cloneUser(u), nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByResetTokenHash(_ context.Context, tokenHash string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ResetTokenHash != "" && u.ResetTokenHash == tokenHash {
			return cloneUser(u), nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id, email, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	for otherID, other := range m.users {
		if otherID != id && other.Email == email {
			return repository.ErrDuplicate
		}
	}
	u.Email = email
	u.Username = username
	m.users[id] = u
	return nil
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
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.RefreshTokenHash != previousHash {
		return false, nil
	}
	u.RefreshTokenHash = tokenHash
	u.RefreshTokenExpires = &expiresAt
	m.users[id] = u
	return true, nil
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
	return m.update(id, func(u *domain.User) {
		u.TOTPSecret = ciphertext
		u.TOTPEnabled = false
	})
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
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !slices.Equal(u.TOTPRecoveryCodes, expected) {
		return false, nil
	}
	u.TOTPRecoveryCodes = slices.Clone(next)
	m.users[id] = u
	return true, nil
}

type mockPendingRepo struct {
	mu      sync.Mutex
	pending map[string]domain.PendingUser
}

func newMockPendingRepo() *mockPendingRepo {
	return &mockPendingRepo{pending: make(map[string]domain.PendingUser)}
}

func (m *mockPendingRepo) Upsert(_ context.Context, p domain.PendingUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.pending[p.Email]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	p.Verified = false
	m.pending[p.Email] = p
	return nil
}

func (m *mockPendingRepo) GetByEmail(_ context.Context, email string) (domain.PendingUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[email]
	if !ok {
		return domain.PendingUser{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockPendingRepo) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, email)
	return nil
}

func (m *mockPendingRepo) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for email, p := range m.pending {
		if p.CreatedAt.Before(cutoff) {
			delete(m.pending, email)
			n++
		}
	}
	return n, nil
}

type mockCodeRepo struct {
	mu    sync.Mutex
	codes map[string]domain.VerificationCode
}

func newMockCodeRepo() *mockCodeRepo {
	return &mockCodeRepo{codes: make(map[string]domain.VerificationCode)}
}

func (m *mockCodeRepo) Upsert(_ context.Context, c domain.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Attempts = 0
	m.codes[c.Email] = c
	return nil
}

func (m *mockCodeRepo) GetByEmail(_ context.Context, email string) (domain.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[email]
	if !ok {
		return domain.VerificationCode{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockCodeRepo) IncrementAttempts(_ context.Context, email string, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[email]
	if !ok || c.Attempts >= max {
		return 0, pgx.ErrNoRows
	}
	c.Attempts++
	m.codes[email] = c
	return c.Attempts, nil
}

func (m *mockCodeRepo) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, email)
	return nil
}

func (m *mockCodeRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for email, c := range m.codes {
		if c.ExpiresAt.Before(now) {
			delete(m.codes, email)
			n++
		}
	}
	return n, nil
}

type mockEmailSender struct {
	mu        sync.Mutex
	codes     map[string]string
	resets    map[string]string
	reminders []email.ReminderEmail
	failFor   map[string]bool
	err       error
}

func newMockEmailSender() *mockEmailSender {
	return &mockEmailSender{
		codes:   make(map[string]string),
		resets:  make(map[string]string),
		failFor: make(map[string]bool),
	}
}

func (m *mockEmailSender) SendVerificationCode(_ context.Context, toEmail string, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.codes[toEmail] = code
	return nil
}

func (m *mockEmailSender) SendPasswordReset(_ context.Context, toEmail string, resetURL string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.resets[toEmail] = resetURL
	return nil
}

func (m *mockEmailSender) SendReminder(_ context.Context, r email.ReminderEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil || m.failFor[r.ToEmail] {
		return errors.New("smtp unavailable")
	}
	m.reminders = append(m.reminders, r)
	return nil
}

func (m *mockEmailSender) lastCode(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
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
	track.Reminder = nil
	m.tracks[track.ID] = track
	return nil
}

func (m *mockJobTrackRepo) CreateWithReminder(_ context.Context, track domain.JobTrack, reminder domain.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	track.Reminder = &reminder
	m.tracks[track.ID] = track
	return nil
}

func (m *mockJobTrackRepo) GetByID(_ context.Context, id string) (domain.JobTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[id]
	if !ok {
		return domain.JobTrack{}, pgx.ErrNoRows
	}
	if t.Reminder != nil {
		r := *t.Reminder
		t.Reminder = &r
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
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockJobTrackRepo) Update(_ context.Context, track domain.JobTrack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tracks[track.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	track.Reminder = existing.Reminder
	track.CVFileName = existing.CVFileName
	track.LMFileName = existing.LMFileName
	m.tracks[track.ID] = track
	return nil
}

func (m *mockJobTrackRepo) UpdateWithReminder(_ context.Context, track domain.JobTrack, reminder domain.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tracks[track.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	track.CVFileName = existing.CVFileName
	track.LMFileName = existing.LMFileName
	track.Reminder = &reminder
	m.tracks[track.ID] = track
	return nil
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
	due       []domain.DueReminder
	marked    map[string][2]time.Time
	limit     int
	statsArgs [3]time.Time
}

func newMockReminderRepo(tracks *mockJobTrackRepo) *mockReminderRepo {
	return &mockReminderRepo{
		reminders: make(map[string]domain.Reminder),
		tracks:    tracks,
		marked:    make(map[string][2]time.Time),
	}
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

func (m *mockReminderRepo) ListByJobTrack(_ context.Context, jobTrackID string) ([]domain.Reminder, error) {
	return m.filter(func(r domain.Reminder) bool { return r.JobTrackID == jobTrackID }), nil
}

func (m *mockReminderRepo) ListActiveByUser(ctx context.Context, userID string) ([]domain.Reminder, error) {
	owned := make(map[string]bool)
	tracks, _ := m.tracks.ListByUser(ctx, userID, "")
	for _, t := range tracks {
		owned[t.ID] = true
	}
	return m.filter(func(r domain.Reminder) bool { return r.IsActive && owned[r.JobTrackID] }), nil
}

func (m *mockReminderRepo) filter(match func(domain.Reminder) bool) []domain.Reminder {
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

func (m *mockReminderRepo) Stats(_ context.Context, now, endOfDay, endOfWeek time.Time) (domain.ReminderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsArgs = [3]time.Time{now, endOfDay, endOfWeek}
	var st domain.ReminderStats
	for _, r := range m.reminders {
		if !r.IsActive {
			continue
		}
		st.TotalActive++
		if !r.NextReminderAt.After(now) {
			st.DueNow++
		}
		if !r.NextReminderAt.After(endOfDay) {
			st.DueToday++
		}
		if !r.NextReminderAt.After(endOfWeek) {
			st.DueThisWeek++
		}
	}
	return st, nil
}

func (m *mockReminderRepo) ListDue(_ context.Context, _ time.Time, limit int) ([]domain.DueReminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	return slices.Clone(m.due), nil
}

func (m *mockReminderRepo) MarkSent(_ context.Context, id string, sentAt, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked[id] = [2]time.Time{sentAt, next}
	if r, ok := m.reminders[id]; ok {
		r.LastSentAt = &sentAt
		r.NextReminderAt = next
		r.UpdatedAt = sentAt
		m.reminders[id] = r
	}
	return nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
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
