package mailer

// Scenario templates by risk tier. Selection is deterministic so a user's
// campaign history is reproducible from their score.
var (
	lowRiskTemplates = []Template{
		{ID: "newsletter_01", Scenario: "newsletter", Subject: "Your monthly company newsletter"},
		{ID: "survey_01", Scenario: "survey", Subject: "2-minute employee survey"},
	}
	mediumRiskTemplates = []Template{
		{ID: "password_01", Scenario: "password_reset", Subject: "Action required: password expires soon"},
		{ID: "shared_doc_01", Scenario: "shared_document", Subject: "A document was shared with you"},
	}
	highRiskTemplates = []Template{
		{ID: "payroll_01", Scenario: "payroll_update", Subject: "Urgent: confirm your payroll details"},
		{ID: "it_alert_01", Scenario: "it_security_alert", Subject: "Security alert: verify your account now"},
	}
)

// templateFor picks a scenario for the given risk score. The tier bands
// match the training-decision thresholds; within a tier the pick rotates on
// a simple counter derived from the user id so repeated campaigns vary.
func templateFor(userID string, riskScore float64) Template {
	var pool []Template
	switch {
	case riskScore >= 0.6:
		pool = highRiskTemplates
	case riskScore >= 0.3:
		pool = mediumRiskTemplates
	default:
		pool = lowRiskTemplates
	}

	sum := 0
	for _, c := range userID {
		sum += int(c)
	}
	return pool[sum%len(pool)]
}
