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

func ids(cs []model.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func newContactService(store *fakeStore) *service.ContactService {
	campaigns, _, contacts, _ := store.repos()
	return &service.ContactService{
		ContactRepo:  contacts,
		CampaignRepo: campaigns,
		Recipients:   &service.RecipientSelector{ContactRepo: contacts},
		Log:          zap.NewNop().Sugar(),
	}
}

func TestRecipientSelection(t *testing.T) {
	store := newFakeStore()
	store.addContacts(
		model.Contact{ID: "a", UserID: "u1", Tags: []string{"vip"}, Status: model.ContactActive},
		model.Contact{ID: "b", UserID: "u1", Tags: []string{"beta", "news"}, Status: model.ContactActive},
		model.Contact{ID: "c", UserID: "u1", Status: model.ContactActive},
		model.Contact{ID: "d", UserID: "u1", Tags: []string{"vip"}, Status: model.ContactBounced},
		model.Contact{ID: "e", UserID: "u2", Tags: []string{"vip"}, Status: model.ContactActive},
	)
	svc := newContactService(store)
	ctx := context.Background()

	all, err := svc.ListRecipients(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(all))

	tagged, err := svc.ListRecipients(ctx, "u1", []string{"vip", " news", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(tagged))

	none, err := svc.ListRecipients(ctx, "u1", []string{"nobody"})
	require.NoError(t, err)
	assert.Empty(t, none)

	after, err := svc.Recipients.SelectAfter(ctx, "u1", nil, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(after))
}

func TestUnsubscribe(t *testing.T) {
	store := newFakeStore()
	store.addCampaign(model.Campaign{ID: "c1", UserID: "u1"})
	store.addContacts(
		model.Contact{ID: "a", UserID: "u1", Status: model.ContactActive},
		model.Contact{ID: "z", UserID: "u2", Status: model.ContactActive},
	)
	svc := newContactService(store)
	ctx := context.Background()

	require.NoError(t, svc.Unsubscribe(ctx, "c1", "a"))
	_, _, contacts, _ := store.repos()
	a, err := contacts.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.ContactUnsubscribed, a.Status)

	// Following the link twice is harmless.
	assert.NoError(t, svc.Unsubscribe(ctx, "c1", "a"))

	assert.ErrorIs(t, svc.Unsubscribe(ctx, "c1", "z"), appErrors.ErrContactNotFound)
	assert.True(t, appErrors.IsNotFound(svc.Unsubscribe(ctx, "nope", "a")))
}
