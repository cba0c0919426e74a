package services

import (
	"context"
	"testing"
	"time"

	"franchise-dispatch-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompetitorCheckListsOnlyActiveOthers(t *testing.T) {
	env := newTestEnv(t, deliveredAt)
	env.seedMerchants(t, "A", "B", "C", "D", "E")
	env.seedCase(t, "X", "A", "B", "C", "D", "E")

	ctx := context.Background()
	appt := deliveredAt.Add(48 * time.Hour)
	_, err := env.app.Ledger.UpdateDetailStatus(ctx, UpdateDetailStatusInput{CaseID: "X", MerchantID: "B", Status: models.DetailAppointmentSet, AppointmentAt: &appt})
	require.NoError(t, err)
	_, err = env.app.Ledger.RecordContact(ctx, "X", "C", ContactCall, time.Time{}, "C")
	require.NoError(t, err)
	_, err = env.app.Ledger.UpdateDetailStatus(ctx, UpdateDetailStatusInput{CaseID: "X", MerchantID: "D", Status: models.DetailQuoteSubmitted})
	require.NoError(t, err)
	_, err = env.app.Ledger.MarkOutcome(ctx, "X", "D", models.DeliveryStatusLost, "admin")
	require.NoError(t, err)
	// E stays "new" and never counts.

	snapshot, err := NewCompetitorChecker(env.store).Check(ctx, "X", "A")
	require.NoError(t, err)

	assert.True(t, snapshot.HasActiveCompetitors)
	require.Len(t, snapshot.CompetitorDetails, 2)
	ids := []string{snapshot.CompetitorDetails[0].MerchantID, snapshot.CompetitorDetails[1].MerchantID}
	assert.ElementsMatch(t, []string{"B", "C"}, ids)
	for _, d := range snapshot.CompetitorDetails {
		assert.Equal(t, "Merchant "+d.MerchantID, d.MerchantName)
		if d.MerchantID == "B" {
			require.NotNil(t, d.AppointmentAt)
			assert.True(t, d.AppointmentAt.Equal(appt))
		}
		if d.MerchantID == "C" {
			assert.Equal(t, 1, d.CallCount)
		}
	}
}

func TestCompetitorCheckNoOthers(t *testing.T) {
	env := newTestEnv(t, deliveredAt)
	env.seedMerchants(t, "A")
	env.seedCase(t, "X", "A")

	snapshot, err := NewCompetitorChecker(env.store).Check(context.Background(), "X", "A")
	require.NoError(t, err)
	assert.False(t, snapshot.HasActiveCompetitors)
	assert.NotNil(t, snapshot.CompetitorDetails)
	assert.Empty(t, snapshot.CompetitorDetails)
}
