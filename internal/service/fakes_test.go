package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/mailer"
	"github.com/ewynk/mail-backend/internal/model"
	"github.com/ewynk/mail-backend/internal/queue"
	"github.com/ewynk/mail-backend/internal/repository"
)

// fakeStore backs every in-memory repository used by the service tests.
type fakeStore struct {
	mu         sync.Mutex
	campaigns  map[string]*model.Campaign
	templates  map[string]*model.Template
	contacts   map[string]*model.Contact
	logs       []model.EmailLog
	duplicates map[string]*model.ContactDuplicate
	seq        int

	logErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campaigns:  map[string]*model.Campaign{},
		templates:  map[string]*model.Template{},
		contacts:   map[string]*model.Contact{},
		duplicates: map[string]*model.ContactDuplicate{},
	}
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%03d", prefix, s.seq)
}

func (s *fakeStore) addCampaign(c model.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = &c
}

func (s *fakeStore) addTemplate(t model.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = &t
}

func (s *fakeStore) addContacts(cs ...model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cs {
		c := c
		s.contacts[c.ID] = &c
	}
}

func (s *fakeStore) campaign(id string) model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.campaigns[id]
}

func (s *fakeStore) setStatus(id string, status model.CampaignStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[id].Status = status
}

func (s *fakeStore) emailLogs() []model.EmailLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.EmailLog(nil), s.logs...)
}

func (s *fakeStore) repos() (*fakeCampaignRepo, *fakeTemplateRepo, *fakeContactRepo, *fakeEmailLogRepo) {
	return &fakeCampaignRepo{s}, &fakeTemplateRepo{s}, &fakeContactRepo{s}, &fakeEmailLogRepo{s}
}

// --- campaigns ---

type fakeCampaignRepo struct{ s *fakeStore }

func (r *fakeCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == "" {
		c.ID = r.s.nextID("camp")
	}
	c.CreatedAt = time.Now()
	cp := *c
	r.s.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) GetByID(_ context.Context, id string) (*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) ListCampaigns(_ context.Context, userID string, offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*model.Campaign
	for _, c := range r.s.campaigns {
		if c.UserID != userID || (status != "" && string(c.Status) != status) {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (r *fakeCampaignRepo) GetStatus(_ context.Context, id string) (model.CampaignStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return "", appErrors.NewCampaignNotFound(id)
	}
	return c.Status, nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id string, from, to model.CampaignStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || !model.CanTransition(from, to) || c.Status != from {
		return fmt.Errorf("%s -> %s: %w", from, to, appErrors.ErrInvalidTransition)
	}
	c.Status = to
	return nil
}

func (r *fakeCampaignRepo) StartSending(_ context.Context, id string, from model.CampaignStatus, total int, reset bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || !model.CanStartSending(from) || c.Status != from {
		return appErrors.ErrInvalidTransition
	}
	c.Status = model.CampaignSending
	c.TotalRecipients = total
	if reset {
		c.SentCount, c.FailedCount, c.Cursor = 0, 0, ""
	}
	return nil
}

func (r *fakeCampaignRepo) SaveProgress(_ context.Context, id, cursor string, sent, failed int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	c.Cursor, c.SentCount, c.FailedCount = cursor, sent, failed
	return nil
}

func (r *fakeCampaignRepo) Complete(_ context.Context, id string, sent, failed int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	if c.Status != model.CampaignSending {
		return appErrors.ErrInvalidTransition
	}
	now := time.Now()
	c.Status, c.SentCount, c.FailedCount, c.CompletedAt = model.CampaignCompleted, sent, failed, &now
	return nil
}

func (r *fakeCampaignRepo) Schedule(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	if c.Status != model.CampaignDraft && c.Status != model.CampaignScheduled {
		return appErrors.ErrInvalidTransition
	}
	c.Status, c.ScheduledAt = model.CampaignScheduled, &at
	return nil
}

func (r *fakeCampaignRepo) Rerun(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	if !model.CanRerun(c.Status) {
		return appErrors.ErrInvalidTransition
	}
	c.Status, c.TotalRecipients, c.SentCount, c.FailedCount, c.Cursor = model.CampaignDraft, 0, 0, 0, ""
	return nil
}

func (r *fakeCampaignRepo) ListDue(_ context.Context, now time.Time) ([]*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []*model.Campaign
	for _, c := range r.s.campaigns {
		if c.Status == model.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			cp := *c
			due = append(due, &cp)
		}
	}
	return due, nil
}

// --- templates ---

type fakeTemplateRepo struct{ s *fakeStore }

func (r *fakeTemplateRepo) GetByID(_ context.Context, id string) (*model.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, appErrors.ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTemplateRepo) Create(_ context.Context, t *model.Template) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *t
	r.s.templates[t.ID] = &cp
	return nil
}

// --- contacts ---

type fakeContactRepo struct{ s *fakeStore }

func (r *fakeContactRepo) sorted(keep func(*model.Contact) bool) []model.Contact {
	out := []model.Contact{}
	for _, c := range r.s.contacts {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeContactRepo) GetByID(_ context.Context, id string) (*model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, appErrors.ErrContactNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeContactRepo) ListByUser(_ context.Context, userID string) ([]model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(c *model.Contact) bool { return c.UserID == userID }), nil
}

func (r *fakeContactRepo) ListRecipients(_ context.Context, userID string, tags []string, afterID string) ([]model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(c *model.Contact) bool {
		return c.UserID == userID && c.Eligible(tags) && c.ID > afterID
	}), nil
}

func (r *fakeContactRepo) Update(_ context.Context, c *model.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contacts[c.ID]; !ok {
		return appErrors.ErrContactNotFound
	}
	cp := *c
	r.s.contacts[c.ID] = &cp
	return nil
}

func (r *fakeContactRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contacts[id]; !ok {
		return appErrors.ErrContactNotFound
	}
	delete(r.s.contacts, id)
	return nil
}

func (r *fakeContactRepo) SetStatus(_ context.Context, id string, status model.ContactStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return appErrors.ErrContactNotFound
	}
	c.Status = status
	return nil
}

// --- email logs ---

type fakeEmailLogRepo struct{ s *fakeStore }

func (r *fakeEmailLogRepo) Create(_ context.Context, l *model.EmailLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.logErr != nil {
		return r.s.logErr
	}
	l.ID = r.s.nextID("log")
	r.s.logs = append(r.s.logs, *l)
	return nil
}

func (r *fakeEmailLogRepo) ListByCampaign(_ context.Context, campaignID string, offset, limit int) ([]model.EmailLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.EmailLog{}
	for _, l := range r.s.logs {
		if l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	if offset >= len(out) {
		return []model.EmailLog{}, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (r *fakeEmailLogRepo) CountByStatus(_ context.Context, campaignID string) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := map[string]int{"SENT": 0, "FAILED": 0}
	for _, l := range r.s.logs {
		if l.CampaignID == campaignID {
			stats[string(l.Status)]++
		}
	}
	return stats, nil
}

// --- duplicates ---

type fakeDuplicateRepo struct{ s *fakeStore }

func (r *fakeDuplicateRepo) Exists(_ context.Context, a, b string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, b = model.OrderedPair(a, b)
	for _, d := range r.s.duplicates {
		if d.ContactID1 == a && d.ContactID2 == b {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeDuplicateRepo) Create(_ context.Context, d *model.ContactDuplicate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d.ID = r.s.nextID("dup")
	d.ContactID1, d.ContactID2 = model.OrderedPair(d.ContactID1, d.ContactID2)
	if d.Status == "" {
		d.Status = model.DuplicatePending
	}
	cp := *d
	r.s.duplicates[d.ID] = &cp
	return nil
}

func (r *fakeDuplicateRepo) GetByID(_ context.Context, id string) (*model.ContactDuplicate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.duplicates[id]
	if !ok {
		return nil, appErrors.ErrDuplicateNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDuplicateRepo) List(_ context.Context, userID string, status model.DuplicateStatus) ([]model.ContactDuplicate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.ContactDuplicate{}
	for _, d := range r.s.duplicates {
		if d.UserID == userID && (status == "" || d.Status == status) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (r *fakeDuplicateRepo) UpdateStatus(_ context.Context, id string, status model.DuplicateStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.duplicates[id]
	if !ok {
		return appErrors.ErrDuplicateNotFound
	}
	d.Status = status
	return nil
}

// --- mail transport ---

const anyArg = mock.Anything

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockTransport) Close() error { return nil }

type stubResolver struct {
	transport mailer.Transport
	err       error
}

func (r *stubResolver) Resolve(context.Context, string) (mailer.Transport, mailer.From, error) {
	if r.err != nil {
		return nil, mailer.From{}, r.err
	}
	return r.transport, mailer.From{Email: "team@ewynk.com", Name: "eWynk"}, nil
}

// --- queue ---

type recordingQueue struct {
	mu   sync.Mutex
	jobs []queue.SendJob
}

func (q *recordingQueue) Publish(_ context.Context, job queue.SendJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Consume(ctx context.Context, _ queue.Handler) error {
	<-ctx.Done()
	return nil
}

func (q *recordingQueue) Close() error { return nil }

var (
	_ repository.CampaignRepositoryInterface  = (*fakeCampaignRepo)(nil)
	_ repository.TemplateRepositoryInterface  = (*fakeTemplateRepo)(nil)
	_ repository.ContactRepositoryInterface   = (*fakeContactRepo)(nil)
	_ repository.EmailLogRepositoryInterface  = (*fakeEmailLogRepo)(nil)
	_ repository.DuplicateRepositoryInterface = (*fakeDuplicateRepo)(nil)
	_ queue.Queue                             = (*recordingQueue)(nil)
)
