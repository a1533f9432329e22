package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/model"
	"github.com/ewynk/mail-backend/internal/service"
)

func TestScoreDuplicate(t *testing.T) {
	tests := []struct {
		name   string
		a, b   model.Contact
		score  int
		fields []string
	}{
		{
			name:   "email differs only in case",
			a:      model.Contact{Email: "Ana@X.com"},
			b:      model.Contact{Email: "ana@x.com"},
			score:  40,
			fields: []string{"email"},
		},
		{
			name:   "phone formatting ignored",
			a:      model.Contact{Phone: "+1 (555) 010-9999"},
			b:      model.Contact{Phone: "15550109999"},
			score:  30,
			fields: []string{"phone"},
		},
		{
			name:   "name substring",
			a:      model.Contact{Name: "Ana Silva"},
			b:      model.Contact{Name: "ana"},
			score:  10,
			fields: []string{"name"},
		},
		{
			name:  "nothing in common",
			a:     model.Contact{Email: "a@x.com", Name: "Ana"},
			b:     model.Contact{Email: "b@x.com", Name: "Bo"},
			score: 0,
		},
		{
			name:  "empty fields never match",
			a:     model.Contact{},
			b:     model.Contact{},
			score: 0,
		},
		{
			name: "every rule",
			a: model.Contact{Email: "ana@x.com", Phone: "555-1234", FirstName: "Ana", LastName: "Silva",
				Company: "Acme"},
			b: model.Contact{Email: "ANA@x.com", Phone: "5551234", FirstName: "ana", LastName: "SILVA",
				Company: "acme"},
			score:  115,
			fields: []string{"email", "phone", "name", "firstName_lastName", "company"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.ScoreDuplicate(tt.a, tt.b)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.fields, got.MatchedFields)

			rev := service.ScoreDuplicate(tt.b, tt.a)
			assert.Equal(t, got.Score, rev.Score)
		})
	}
}

func newDuplicateService(store *fakeStore) *service.DuplicateService {
	_, _, contacts, _ := store.repos()
	return &service.DuplicateService{
		ContactRepo:   contacts,
		DuplicateRepo: &fakeDuplicateRepo{store},
		Log:           zap.NewNop().Sugar(),
	}
}

func seedDuplicates(store *fakeStore) {
	store.addContacts(
		model.Contact{ID: "k1", UserID: "u1", Email: "ana@x.com", Phone: "555 1234", FirstName: "Ana", Tags: []string{"vip"}},
		model.Contact{ID: "k2", UserID: "u1", Email: "ANA@x.com", Phone: "5551234", Company: "Acme", Tags: []string{"vip", "beta"}},
		model.Contact{ID: "k3", UserID: "u1", Email: "bo@x.com", Name: "Bo"},
		model.Contact{ID: "k4", UserID: "u2", Email: "ana@x.com", Phone: "5551234"},
	)
}

func TestDuplicateService_ScanRecordsEachPairOnce(t *testing.T) {
	store := newFakeStore()
	seedDuplicates(store)
	svc := newDuplicateService(store)

	n, err := svc.Scan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.Scan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	pairs, err := svc.List(context.Background(), "u1", model.DuplicatePending)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "k1", pairs[0].ContactID1)
	assert.Equal(t, "k2", pairs[0].ContactID2)
	assert.Equal(t, 70, pairs[0].Score)
	assert.Equal(t, []string{"email", "phone"}, pairs[0].MatchedFields)
}

func TestDuplicateService_Merge(t *testing.T) {
	store := newFakeStore()
	seedDuplicates(store)
	svc := newDuplicateService(store)

	_, err := svc.Scan(context.Background(), "u1")
	require.NoError(t, err)
	pairs, err := svc.List(context.Background(), "u1", "")
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	// Another user cannot touch the pair.
	_, err = svc.Merge(context.Background(), "u2", pairs[0].ID)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateNotFound)
	_, _, contactRepo, _ := store.repos()
	_, err = contactRepo.GetByID(context.Background(), "k2")
	require.NoError(t, err)

	kept, err := svc.Merge(context.Background(), "u1", pairs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "k1", kept.ID)
	assert.Equal(t, "Ana", kept.FirstName)
	assert.Equal(t, "Acme", kept.Company)
	assert.Equal(t, []string{"vip", "beta"}, kept.Tags)

	_, err = contactRepo.GetByID(context.Background(), "k2")
	assert.ErrorIs(t, err, appErrors.ErrContactNotFound)

	d, err := (&fakeDuplicateRepo{store}).GetByID(context.Background(), pairs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateMerged, d.Status)

	_, err = svc.Merge(context.Background(), "u1", pairs[0].ID)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDuplicateService_Ignore(t *testing.T) {
	store := newFakeStore()
	seedDuplicates(store)
	svc := newDuplicateService(store)

	_, err := svc.Scan(context.Background(), "u1")
	require.NoError(t, err)
	pairs, _ := svc.List(context.Background(), "u1", model.DuplicatePending)
	require.Len(t, pairs, 1)

	assert.ErrorIs(t, svc.Ignore(context.Background(), "u2", pairs[0].ID), appErrors.ErrDuplicateNotFound)
	require.NoError(t, svc.Ignore(context.Background(), "u1", pairs[0].ID))

	pending, err := svc.List(context.Background(), "u1", model.DuplicatePending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// An ignored pair is not proposed again.
	n, err := svc.Scan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.True(t, appErrors.IsNotFound(svc.Ignore(context.Background(), "u1", "nope")))
}
