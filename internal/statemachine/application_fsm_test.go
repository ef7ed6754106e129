package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creditiq/creditiq-api/internal/models"
)

func appWithStatus(status string) *models.LoanApplication {
	return &models.LoanApplication{ID: 1, UserID: 42, Status: status}
}

func TestApplicationFSM_Submit(t *testing.T) {
	app := appWithStatus(models.ApplicationStatusDraft)
	machine := NewApplicationFSM(app)

	err := machine.Submit(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusSubmitted, machine.Current())
	assert.Equal(t, models.ApplicationStatusSubmitted, app.Status)
}

func TestApplicationFSM_Submit_InvalidSource(t *testing.T) {
	for _, status := range []string{
		models.ApplicationStatusSubmitted,
		models.ApplicationStatusUnderReview,
		models.ApplicationStatusApproved,
		models.ApplicationStatusRejected,
	} {
		t.Run(status, func(t *testing.T) {
			app := appWithStatus(status)
			machine := NewApplicationFSM(app)

			err := machine.Submit(context.Background())

			assert.Error(t, err)
			assert.Equal(t, status, app.Status, "status must not change on a failed transition")
		})
	}
}

func TestApplicationFSM_ApproveAndReject(t *testing.T) {
	app := appWithStatus(models.ApplicationStatusSubmitted)
	machine := NewApplicationFSM(app)
	assert.NoError(t, machine.Approve(context.Background()))
	assert.Equal(t, models.ApplicationStatusApproved, app.Status)

	app = appWithStatus(models.ApplicationStatusSubmitted)
	machine = NewApplicationFSM(app)
	assert.NoError(t, machine.Reject(context.Background()))
	assert.Equal(t, models.ApplicationStatusRejected, app.Status)
}

func TestApplicationFSM_ApproveFromDraftFails(t *testing.T) {
	app := appWithStatus(models.ApplicationStatusDraft)
	machine := NewApplicationFSM(app)

	assert.Error(t, machine.Approve(context.Background()))
	assert.Error(t, machine.Reject(context.Background()))
	assert.Equal(t, models.ApplicationStatusDraft, app.Status)
}

func TestApplicationFSM_TerminalStatesHaveNoTransitions(t *testing.T) {
	for _, status := range []string{
		models.ApplicationStatusApproved,
		models.ApplicationStatusRejected,
	} {
		t.Run(status, func(t *testing.T) {
			machine := NewApplicationFSM(appWithStatus(status))

			assert.False(t, machine.Can("submit"))
			assert.False(t, machine.Can("approve"))
			assert.False(t, machine.Can("reject"))
			assert.False(t, machine.Can("review"))
		})
	}
}

func TestApplicationFSM_Review(t *testing.T) {
	app := appWithStatus(models.ApplicationStatusSubmitted)
	machine := NewApplicationFSM(app)

	assert.NoError(t, machine.Review(context.Background()))
	assert.Equal(t, models.ApplicationStatusUnderReview, app.Status)

	// A reviewed application can still be decided
	assert.True(t, machine.Can("approve"))
	assert.True(t, machine.Can("reject"))
}
