package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetailStatusClass(t *testing.T) {
	cases := map[DetailStatus]StatusClass{
		DetailNew:                  ClassPending,
		DetailNoAppointment:        ClassActive,
		DetailAppointmentSet:       ClassActive,
		DetailSiteSurveyDone:       ClassActive,
		DetailQuoteSubmitted:       ClassActive,
		DetailPaymentPending:       ClassActive,
		DetailComplete:             ClassTerminalSuccess,
		DetailLostToCompetitor:     ClassTerminalFailure,
		DetailLostCustomerDeclined: ClassTerminalFailure,
		DetailLostUnreachable:      ClassTerminalFailure,
		DetailCancelled:            ClassTerminalFailure,
	}
	for status, want := range cases {
		assert.Equal(t, want, status.Class(), status)
	}
	assert.Len(t, DetailStatuses(), len(cases))
}

func TestUnknownDetailStatusIsNeverActive(t *testing.T) {
	s := DetailStatus("mystery")
	assert.False(t, s.Valid())
	assert.Equal(t, ClassPending, s.Class())
	assert.False(t, s.IsActive())
	assert.False(t, s.IsTerminal())
}

func TestDeliveryStatusTerminal(t *testing.T) {
	assert.False(t, DeliveryStatusActive.IsTerminal())
	for _, s := range []DeliveryStatus{DeliveryStatusContract, DeliveryStatusLost, DeliveryStatusCancelled} {
		assert.True(t, s.IsTerminal(), s)
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, DeliveryStatus("paused").Valid())
}

func TestIntakeStateTerminal(t *testing.T) {
	assert.False(t, IntakeActive.IsTerminal())
	assert.True(t, IntakeAbandoned.IsTerminal())
	assert.True(t, IntakeOutOfWindow.IsTerminal())
	assert.True(t, IntakeCompleted.IsTerminal())
}
