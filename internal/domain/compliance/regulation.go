package compliance

import (
	"sort"
	"strings"
	"time"
)

// FetchStatus reports the outcome of one regulation fetch.
type FetchStatus string

const (
	FetchSuccess FetchStatus = "success"
	FetchFailed  FetchStatus = "failed"
)

// RegulationData is one regulation's fetched requirements. A failed fetch is
// recorded with Status == FetchFailed and the error text; it never aborts the
// sibling fetches in the same dataset.
type RegulationData struct {
	Regulation         string      `json:"regulation"`
	Status             FetchStatus `json:"status"`
	LastUpdated        string      `json:"last_updated,omitempty"`
	Source             string      `json:"source,omitempty"`
	Version            string      `json:"version,omitempty"`
	KeyProvisions      []string    `json:"key_provisions,omitempty"`
	Jurisdiction       string      `json:"jurisdiction,omitempty"`
	ComplianceDeadline string      `json:"compliance_deadline,omitempty"`
	Error              string      `json:"error,omitempty"`
}

// RegulatoryDataset is the Monitor stage's gather output, one entry per
// configured regulation.
type RegulatoryDataset struct {
	Regulations       map[string]RegulationData `json:"regulatory_data"`
	Timestamp         time.Time                 `json:"timestamp"`
	SourcesChecked    int                       `json:"sources_checked"`
	SuccessfulFetches int                       `json:"successful_fetches"`
}

// Successful returns the names of successfully fetched regulations, sorted.
func (d *RegulatoryDataset) Successful() []string {
	names := make([]string, 0, len(d.Regulations))
	for name, data := range d.Regulations {
		if data.Status == FetchSuccess {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RegulatoryChange describes one detected change to a monitored regulation.
type RegulatoryChange struct {
	Regulation     string    `json:"regulation"`
	ChangeType     string    `json:"change_type"`
	Description    string    `json:"description"`
	ImpactLevel    string    `json:"impact_level"`
	EffectiveDate  time.Time `json:"effective_date"`
	ActionRequired bool      `json:"action_required"`
}

// ChangeReport is the Monitor stage's change-detection output.
type ChangeReport struct {
	HasChanges         bool               `json:"has_changes"`
	Changes            []RegulatoryChange `json:"changes"`
	CheckedRegulations []string           `json:"checked_regulations"`
	Timestamp          time.Time          `json:"timestamp"`
}

// RegulationDetails is a static knowledge-base record for one regulation. The
// Monitor stage sources its fetched provisions from these records.
type RegulationDetails struct {
	FullName           string   `json:"full_name"`
	Jurisdiction       string   `json:"jurisdiction"`
	EffectiveDate      string   `json:"effective_date"`
	KeyRequirements    []string `json:"key_requirements"`
	ComplianceDeadline string   `json:"compliance_deadline"`
	Applicability      string   `json:"applicability"`
	Penalties          string   `json:"penalties"`
}

var regulationDB = map[string]RegulationDetails{
	"GDPR": {
		FullName:      "General Data Protection Regulation",
		Jurisdiction:  "European Union",
		EffectiveDate: "2018-05-25",
		KeyRequirements: []string{
			"Data protection by design and by default",
			"Lawful basis for processing",
			"Data subject rights",
			"Data breach notification",
			"Data Protection Officer appointment",
		},
		ComplianceDeadline: "Ongoing",
		Applicability:      "Organizations processing EU resident data",
		Penalties:          "Up to 4% of global annual turnover or €20 million",
	},
	"HIPAA": {
		FullName:      "Health Insurance Portability and Accountability Act",
		Jurisdiction:  "United States",
		EffectiveDate: "1996-08-21",
		KeyRequirements: []string{
			"Privacy Rule - Protected Health Information",
			"Security Rule - Administrative, Physical, Technical Safeguards",
			"Breach Notification Rule",
			"Enforcement Rule",
		},
		ComplianceDeadline: "Ongoing",
		Applicability:      "Healthcare providers, health plans, healthcare clearinghouses",
		Penalties:          "Up to $1.5 million per violation category per year",
	},
	"SOX": {
		FullName:      "Sarbanes-Oxley Act",
		Jurisdiction:  "United States",
		EffectiveDate: "2002-07-30",
		KeyRequirements: []string{
			"Section 302 - Corporate responsibility for financial reports",
			"Section 404 - Management assessment of internal controls",
			"Section 409 - Real-time issuer disclosures",
			"Section 802 - Criminal penalties for altering documents",
		},
		ComplianceDeadline: "Annual",
		Applicability:      "US public companies and their auditors",
		Penalties:          "Fines and up to 20 years imprisonment for violations",
	},
}

// RegulationLookup carries a knowledge-base lookup outcome. A miss is a value,
// not an error, and enumerates the valid keys.
type RegulationLookup struct {
	Found     bool              `json:"found"`
	Details   RegulationDetails `json:"details,omitempty"`
	ValidKeys []string          `json:"valid_keys,omitempty"`
}

// LookupRegulation resolves a regulation name case-insensitively against the
// static knowledge base.
func LookupRegulation(name string) RegulationLookup {
	if details, ok := regulationDB[strings.ToUpper(name)]; ok {
		return RegulationLookup{Found: true, Details: details}
	}
	keys := make([]string, 0, len(regulationDB))
	for k := range regulationDB {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return RegulationLookup{Found: false, ValidKeys: keys}
}
