package models

// DeliveryStatus is the coarse outcome bucket of a delivery record.
type DeliveryStatus string

const (
	DeliveryStatusActive    DeliveryStatus = "active"
	DeliveryStatusContract  DeliveryStatus = "contract"
	DeliveryStatusLost      DeliveryStatus = "lost"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// IsTerminal reports whether the delivery status can no longer change.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case DeliveryStatusContract, DeliveryStatusLost, DeliveryStatusCancelled:
		return true
	}
	return false
}

func (s DeliveryStatus) Valid() bool {
	return s == DeliveryStatusActive || s.IsTerminal()
}

// DetailStatus is the fine-grained pursuit stage reported by a merchant.
type DetailStatus string

const (
	DetailNew                  DetailStatus = "new"
	DetailNoAppointment        DetailStatus = "no-appointment"
	DetailAppointmentSet       DetailStatus = "appointment-set"
	DetailSiteSurveyDone       DetailStatus = "site-survey-done"
	DetailQuoteSubmitted       DetailStatus = "quote-submitted"
	DetailPaymentPending       DetailStatus = "payment-pending"
	DetailComplete             DetailStatus = "complete"
	DetailLostToCompetitor     DetailStatus = "lost-competitor"
	DetailLostCustomerDeclined DetailStatus = "lost-customer-declined"
	DetailLostUnreachable      DetailStatus = "lost-unreachable"
	DetailCancelled            DetailStatus = "cancelled"
)

// StatusClass groups detail statuses for listings and competitor checks.
type StatusClass string

const (
	ClassPending         StatusClass = "pending"
	ClassActive          StatusClass = "active"
	ClassTerminalSuccess StatusClass = "terminal-success"
	ClassTerminalFailure StatusClass = "terminal-failure"
)

var detailStatusClasses = map[DetailStatus]StatusClass{
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

// DetailStatuses returns every known detail status in pipeline order.
func DetailStatuses() []DetailStatus {
	return []DetailStatus{
		DetailNew,
		DetailNoAppointment,
		DetailAppointmentSet,
		DetailSiteSurveyDone,
		DetailQuoteSubmitted,
		DetailPaymentPending,
		DetailComplete,
		DetailLostToCompetitor,
		DetailLostCustomerDeclined,
		DetailLostUnreachable,
		DetailCancelled,
	}
}

func (s DetailStatus) Valid() bool {
	_, ok := detailStatusClasses[s]
	return ok
}

// Class classifies the detail status. Unknown values classify as pending so
// they never count as an engaged competitor.
func (s DetailStatus) Class() StatusClass {
	if class, ok := detailStatusClasses[s]; ok {
		return class
	}
	return ClassPending
}

func (s DetailStatus) IsActive() bool {
	return s.Class() == ClassActive
}

func (s DetailStatus) IsTerminal() bool {
	c := s.Class()
	return c == ClassTerminalSuccess || c == ClassTerminalFailure
}

// ApprovalStatus is shared by cancellation and extension applications.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}
