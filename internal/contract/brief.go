// Package contract holds the data model shared by intake, ranking, generation and
// clause rewriting: the brief, knowledge items and the generated document.
package contract

type ServiceType string

const (
	ServiceCleaning     ServiceType = "cleaning"
	ServicePetSitting   ServiceType = "pet_sitting"
	ServiceLawnCare     ServiceType = "lawn_care"
	ServicePoolCleaning ServiceType = "pool_cleaning"
	ServiceOrganizing   ServiceType = "organizing"
)

type Frequency string

const (
	FrequencyOneTime  Frequency = "one_time"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "bi_weekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyMixed    Frequency = "mixed"
)

// Recurring reports whether the frequency describes repeat visits.
func (f Frequency) Recurring() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly, FrequencyMixed:
		return true
	}
	return false
}

type ChargeModel string

const (
	ChargeHourly      ChargeModel = "hourly"
	ChargePerVisit    ChargeModel = "per_visit"
	ChargeMonthlyFlat ChargeModel = "monthly_flat"
	ChargeProject     ChargeModel = "project"
)

type CancellationFeePolicy string

const (
	FeePolicyNone       CancellationFeePolicy = "none"
	FeePolicyFullFee    CancellationFeePolicy = "full_fee"
	FeePolicyPercentage CancellationFeePolicy = "percentage"
	FeePolicyFlatFee    CancellationFeePolicy = "flat_fee"
	FeePolicyFlexible   CancellationFeePolicy = "flexible"
)

const DefaultCurrency = "USD"

// Brief is the structured service description. A nil field means the detail
// was not stated; it is never filled in by guesswork.
type Brief struct {
	ServiceType             *ServiceType           `json:"service_type" validate:"omitempty,oneof=cleaning pet_sitting lawn_care pool_cleaning organizing"`
	WhatService             *string                `json:"what_service"`
	HowOften                *Frequency             `json:"how_often" validate:"omitempty,oneof=one_time weekly bi_weekly monthly mixed"`
	HowChargeModel          *ChargeModel           `json:"how_charge_model" validate:"omitempty,oneof=hourly per_visit monthly_flat project"`
	HowChargeText           *string                `json:"how_charge_text"`
	LocationArea            *string                `json:"location_area"`
	CancellationNoticeHours *float64               `json:"cancellation_notice_hours" validate:"omitempty,gte=0"`
	CancellationFeePolicy   *CancellationFeePolicy `json:"cancellation_fee_policy" validate:"omitempty,oneof=none full_fee percentage flat_fee flexible"`
	DamageCapAmount         *float64               `json:"damage_cap_amount" validate:"omitempty,gte=0"`
	DamageCapCurrency       string                 `json:"damage_cap_currency" validate:"required,len=3,uppercase"`
	HasPets                 *bool                  `json:"has_pets"`
	ShortNotes              *string                `json:"short_notes"`
	ServiceSpecific         map[string]any         `json:"service_specific"`
	CustomTerms             []any                  `json:"custom_terms"`
}

// Normalize fills the always-present fields so the brief serializes to the
// same shape the completion service is asked to return.
func (b *Brief) Normalize(defaultCurrency string) {
	if b.DamageCapCurrency == "" {
		if defaultCurrency == "" {
			defaultCurrency = DefaultCurrency
		}
		b.DamageCapCurrency = defaultCurrency
	}
	if b.ServiceSpecific == nil {
		b.ServiceSpecific = map[string]any{}
	}
	if b.CustomTerms == nil {
		b.CustomTerms = []any{}
	}
}

// IsBlank reports whether every nullable field is unset.
func (b *Brief) IsBlank() bool {
	return b.ServiceType == nil &&
		b.WhatService == nil &&
		b.HowOften == nil &&
		b.HowChargeModel == nil &&
		b.HowChargeText == nil &&
		b.LocationArea == nil &&
		b.CancellationNoticeHours == nil &&
		b.CancellationFeePolicy == nil &&
		b.DamageCapAmount == nil &&
		b.HasPets == nil &&
		b.ShortNotes == nil
}

// BriefFields lists the brief keys that carry a confidence score.
var BriefFields = []string{
	"service_type",
	"what_service",
	"how_often",
	"how_charge_model",
	"how_charge_text",
	"location_area",
	"cancellation_notice_hours",
	"cancellation_fee_policy",
	"damage_cap_amount",
	"damage_cap_currency",
	"has_pets",
	"short_notes",
}

// CriticalFields must be stated with reasonable confidence before generating.
var CriticalFields = []string{
	"service_type",
	"what_service",
	"how_charge_model",
	"how_charge_text",
	"cancellation_notice_hours",
	"cancellation_fee_policy",
}

// LowConfidence is the threshold below which a field counts as not stated.
const LowConfidence = 0.4

// IsNull reports whether the named brief field is unset. Unknown names report false.
func (b *Brief) IsNull(field string) bool {
	switch field {
	case "service_type":
		return b.ServiceType == nil
	case "what_service":
		return b.WhatService == nil
	case "how_often":
		return b.HowOften == nil
	case "how_charge_model":
		return b.HowChargeModel == nil
	case "how_charge_text":
		return b.HowChargeText == nil
	case "location_area":
		return b.LocationArea == nil
	case "cancellation_notice_hours":
		return b.CancellationNoticeHours == nil
	case "cancellation_fee_policy":
		return b.CancellationFeePolicy == nil
	case "damage_cap_amount":
		return b.DamageCapAmount == nil
	case "damage_cap_currency":
		return b.DamageCapCurrency == ""
	case "has_pets":
		return b.HasPets == nil
	case "short_notes":
		return b.ShortNotes == nil
	}
	return false
}

type NextAction string

const (
	NextProceedToForm NextAction = "proceed_to_form"
	NextClarifyInputs NextAction = "clarify_inputs"
)

type IntakeResult struct {
	IsSupportedServiceAgreement bool               `json:"is_supported_service_agreement"`
	UnsupportedReason           *string            `json:"unsupported_reason"`
	AssistantOutOfScopeMessage  *string            `json:"assistant_out_of_scope_message"`
	Brief                       Brief              `json:"brief"`
	FieldConfidence             map[string]float64 `json:"field_confidence"`
	MissingCriticalFields       []string           `json:"missing_critical_fields"`
	NextAction                  NextAction         `json:"next_action"`
}
