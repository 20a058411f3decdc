package appointments

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"bookings/backend/internal/domain"
	"bookings/backend/internal/store"
)

// memStore is an in-memory appointment store and user directory that enforces
// the active-slot uniqueness the Postgres index provides.
type memStore struct {
	mu     sync.Mutex
	users  map[int64]domain.User
	appts  map[int64]domain.Appointment
	nextID int64

	createErr error
	updateErr error
	skipCheck bool
}

func newMemStore(users ...domain.User) *memStore {
	m := &memStore{
		users: make(map[int64]domain.User),
		appts: make(map[int64]domain.Appointment),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memStore) FindByID(ctx context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

type memAppointments struct{ *memStore }

func (m memAppointments) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return domain.Appointment{}, m.createErr
	}
	for _, a := range m.appts {
		if a.ProviderID == appt.ProviderID && a.Date.Equal(appt.Date) && a.CanceledAt == nil {
			return domain.Appointment{}, store.ErrConflict
		}
	}
	m.nextID++
	appt.ID = m.nextID
	m.appts[appt.ID] = appt
	return appt, nil
}

func (m memAppointments) FindByID(ctx context.Context, id int64, withJoins bool) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	if withJoins {
		p := m.users[a.ProviderID]
		c := m.users[a.ClientID]
		a.Provider = &p
		a.Client = &c
	}
	return a, nil
}

func (m memAppointments) FindActiveByProviderAndDate(ctx context.Context, providerID int64, date time.Time) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipCheck {
		return domain.Appointment{}, store.ErrNotFound
	}
	for _, a := range m.appts {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.CanceledAt == nil {
			return a, nil
		}
	}
	return domain.Appointment{}, store.ErrNotFound
}

func (m memAppointments) Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return domain.Appointment{}, m.updateErr
	}
	cur, ok := m.appts[appt.ID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	if cur.CanceledAt != nil {
		return domain.Appointment{}, store.ErrConflict
	}
	cur.CanceledAt = appt.CanceledAt
	m.appts[appt.ID] = cur
	return cur, nil
}

func (m memAppointments) ListActiveByClient(ctx context.Context, clientID int64, page, pageSize int) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []domain.Appointment
	for _, a := range m.appts {
		if a.ClientID == clientID && a.CanceledAt == nil {
			p := m.users[a.ProviderID]
			a.Provider = &p
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	start := (page - 1) * pageSize
	if start >= len(rows) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], nil
}

type fakeSink struct {
	created []domain.Notification
	err     error
}

func (f *fakeSink) Create(ctx context.Context, n domain.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, n)
	return nil
}

type enqueued struct {
	kind    string
	payload any
}

type fakeQueue struct {
	jobs []enqueued
	err  error
}

func (f *fakeQueue) Enqueue(ctx context.Context, kind string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, enqueued{kind: kind, payload: payload})
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

var errBoom = errors.New("boom")
