package compliance

import (
	"github.com/go-playground/validator/v10"

	"github.com/davidleathers/compliance-guard-backend/internal/errors"
)

// CompanyProfile is the input record for a compliance check. Only CompanyID is
// required; every other field is optional and flows through to the stages
// opaquely.
type CompanyProfile struct {
	CompanyID     string         `json:"company_id" validate:"required"`
	Name          string         `json:"name,omitempty"`
	Industry      string         `json:"industry,omitempty"`
	EmployeeCount int            `json:"employee_count,omitempty" validate:"gte=0"`
	Policies      []Policy       `json:"policies,omitempty"`
	Systems       []string       `json:"systems,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// Policy is a single company policy document reference.
type Policy struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	LastReviewed string `json:"last_reviewed,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the profile against its struct tags.
func (p *CompanyProfile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.NewValidationError("INVALID_COMPANY_PROFILE", "company profile failed validation").WithCause(err)
	}
	return nil
}

// EnrichedCompanyData is the Analyze stage's data-collection output: the
// profile plus inventory counts gathered during collection.
type EnrichedCompanyData struct {
	Profile            CompanyProfile `json:"profile"`
	PoliciesAnalyzed   int            `json:"policies_analyzed"`
	SystemsInventoried int            `json:"systems_inventoried"`
	EmployeesCovered   int            `json:"employees_covered"`
	CollectedAt        int64          `json:"data_collection_time"`
}
