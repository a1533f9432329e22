package appErrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignNotFoundWrapped(t *testing.T) {
	err := fmt.Errorf("send: %w", NewCampaignNotFound("c-1"))

	var nf *ErrCampaignNotFound
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, "c-1", nf.CampaignID)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsPermanent(err))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(fmt.Errorf("x: %w", ErrNoRecipients)))
	assert.True(t, IsPermanent(ErrCredentialsMissing))
	assert.False(t, IsPermanent(ErrAlreadySending))
	assert.False(t, IsPermanent(errors.New("connection reset")))
	assert.False(t, IsNotFound(ErrNoRecipients))
}
