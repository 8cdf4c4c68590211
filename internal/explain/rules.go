package explain

// Severity ranks a red flag.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rule flags a feature whose value crosses Threshold. A negative threshold
// means "value <= |Threshold|"; any other threshold means
// "value >= Threshold".
type Rule struct {
	Threshold float64
	Severity  Severity
	Category  string
	// Message renders the flag description from the feature value.
	Message func(v float64) string
}

// Matches reports whether v crosses the rule threshold.
func (r Rule) Matches(v float64) bool {
	if r.Threshold < 0 {
		return v <= -r.Threshold
	}
	return v >= r.Threshold
}

// Rules maps feature names to their red flag rules.
var Rules = map[string]Rule{
	"claim_to_typical_cost_ratio": {
		Threshold: 2.0,
		Severity:  SeverityHigh,
		Category:  "Amount Anomaly",
		Message:   valuef("Claim amount is %.1fx higher than typical for this procedure"),
	},
	"provider_fraud_rate": {
		Threshold: 0.15,
		Severity:  SeverityCritical,
		Category:  "Provider Pattern",
		Message:   percentf("Provider has a %.1f%% historical fraud rate"),
	},
	"provider_weekend_claim_percentage": {
		Threshold: 0.30,
		Severity:  SeverityMedium,
		Category:  "Provider Pattern",
		Message:   percentf("%.1f%% of provider's claims are submitted on weekends"),
	},
	"patient_provider_shopping": {
		Threshold: 3.0,
		Severity:  SeverityHigh,
		Category:  "Patient Behavior",
		Message:   valuef("Patient visited %.0f different providers in short period"),
	},
	"provider_claims_per_day": {
		Threshold: 20.0,
		Severity:  SeverityMedium,
		Category:  "Provider Pattern",
		Message:   valuef("Provider submits %.0f claims per day (unusually high volume)"),
	},
	"shared_address_score": {
		Threshold: 0.5,
		Severity:  SeverityHigh,
		Category:  "Relationship Pattern",
		Message:   fixed("Suspicious address sharing detected between entities"),
	},
	"fraud_ring_membership": {
		Threshold: 0.5,
		Severity:  SeverityCritical,
		Category:  "Relationship Pattern",
		Message:   fixed("Provider is part of a suspected fraud network"),
	},
	"provider_referral_reciprocity": {
		Threshold: 0.6,
		Severity:  SeverityHigh,
		Category:  "Relationship Pattern",
		Message:   fixed("Circular referral pattern detected (referral kickback indicator)"),
	},
	"days_since_policy_start": {
		Threshold: -30,
		Severity:  SeverityMedium,
		Category:  "Timing Issue",
		Message:   valuef("Claim filed only %.0f days after policy activation"),
	},
	"patient_claim_frequency": {
		Threshold: 10.0,
		Severity:  SeverityMedium,
		Category:  "Patient Behavior",
		Message:   valuef("Patient has submitted %.0f claims in past 30 days"),
	},
}

// Descriptions holds human-readable names for features used in data points.
// Features without an entry are shown by name.
var Descriptions = map[string]string{
	"claim_amount":                      "Claim amount",
	"claim_amount_log":                  "Log claim amount",
	"claim_to_typical_cost_ratio":       "Claim amount vs typical cost",
	"length_of_stay":                    "Length of stay",
	"provider_fraud_rate":               "Provider's historical fraud rate",
	"provider_claims_per_day":           "Provider's daily claim volume",
	"provider_weekend_claim_percentage": "Provider's weekend claim rate",
	"provider_referral_reciprocity":     "Provider circular referral indicator",
	"provider_num_claims":               "Provider's claim count",
	"provider_avg_claim":                "Average claim amount for this provider",
	"provider_num_patients":             "Number of patients seen by provider",
	"patient_claim_frequency":           "Patient's claim submission frequency",
	"patient_num_claims":                "Patient's claim count",
	"patient_num_providers":             "Number of providers patient has visited",
	"patient_avg_claim":                 "Patient's average claim amount",
	"patient_provider_shopping":         "Provider shopping behavior indicator",
	"shared_address_score":              "Suspicious address sharing score",
	"fraud_ring_membership":             "Fraud network membership indicator",
	"days_since_policy_start":           "Days since policy activation",
	"days_since_first_claim":            "Days since patient's first claim",
	"service_hour":                      "Time of day of service",
	"patient_betweenness":               "Patient network centrality score",
	"provider_betweenness":              "Provider network centrality score",
	"patient_clustering":                "Patient network clustering indicator",
	"provider_clustering":               "Provider network clustering indicator",
	"shared_neighbors":                  "Shared network connections",
	"graph_distance":                    "Patient to provider network distance",
}

// Describe returns the human-readable name of a feature.
func Describe(feature string) string {
	if d, ok := Descriptions[feature]; ok {
		return d
	}
	return feature
}
