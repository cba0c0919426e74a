package utils

import (
	"fmt"
	"strings"

	"franchise-dispatch-api/models"
)

var (
	// Merchant portals and older admin sheets report detail statuses under a
	// handful of spellings.
	detailStatusSynonyms = map[models.DetailStatus][]string{
		models.DetailNew: {
			"new",
			"unworked",
			"未対応",
		},
		models.DetailNoAppointment: {
			"no_appointment",
			"no-appt",
			"contacted",
			"追客中",
		},
		models.DetailAppointmentSet: {
			"appointment",
			"appointment_set",
			"appt",
			"アポ確定",
		},
		models.DetailSiteSurveyDone: {
			"site_survey_done",
			"survey_done",
			"現調済",
		},
		models.DetailQuoteSubmitted: {
			"quote_submitted",
			"quoted",
			"見積提出済",
		},
		models.DetailPaymentPending: {
			"payment_pending",
			"awaiting_payment",
			"入金待ち",
		},
		models.DetailComplete: {
			"complete",
			"completed",
			"contract",
			"成約",
		},
		models.DetailLostToCompetitor: {
			"lost_competitor",
			"lost_to_competitor",
			"他社決定",
		},
		models.DetailLostCustomerDeclined: {
			"lost_customer_declined",
			"declined",
			"お断り",
		},
		models.DetailLostUnreachable: {
			"lost_unreachable",
			"unreachable",
			"連絡不通",
		},
		models.DetailCancelled: {
			"canceled",
			"cancel",
			"キャンセル",
		},
	}
	detailAliasToCanonical = buildDetailAliasMap()
)

func buildDetailAliasMap() map[string]models.DetailStatus {
	aliasMap := make(map[string]models.DetailStatus)
	for canonical, synonyms := range detailStatusSynonyms {
		if key := normalizeStatusCode(string(canonical)); key != "" {
			aliasMap[key] = canonical
		}
		for _, alias := range synonyms {
			if normalized := normalizeStatusCode(alias); normalized != "" {
				aliasMap[normalized] = canonical
			}
		}
	}
	return aliasMap
}

func normalizeStatusCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// ParseDetailStatus resolves a canonical or alias spelling to the closed
// detail status enum.
func ParseDetailStatus(raw string) (models.DetailStatus, error) {
	normalized := normalizeStatusCode(raw)
	if normalized == "" {
		return "", fmt.Errorf("detail status is required")
	}
	if canonical, ok := detailAliasToCanonical[normalized]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown detail status %q", raw)
}

// DetailStatusAliases lists the accepted spellings of status, canonical first.
func DetailStatusAliases(status models.DetailStatus) []string {
	out := []string{string(status)}
	for _, alias := range detailStatusSynonyms[status] {
		if normalizeStatusCode(alias) != string(status) {
			out = append(out, alias)
		}
	}
	return out
}
