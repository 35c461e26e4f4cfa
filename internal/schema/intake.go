package schema

import (
	"github.com/service-agreement/backend/internal/contract"
)

// Intake validates an intake completion. An empty damage cap currency is filled
// with defaultCurrency.
func (v *Validator) Intake(raw []byte, defaultCurrency string) (contract.IntakeResult, error) {
	var res contract.IntakeResult
	if err := v.decodeShaped(TargetIntake, raw, &res); err != nil {
		return contract.IntakeResult{}, err
	}
	res.Brief.Normalize(defaultCurrency)
	if res.MissingCriticalFields == nil {
		res.MissingCriticalFields = []string{}
	}
	if err := CheckIntake(&res); err != nil {
		return contract.IntakeResult{}, err
	}
	return res, nil
}

// CheckIntake enforces the consistency rules between support, brief,
// confidences and missing critical fields.
func CheckIntake(res *contract.IntakeResult) error {
	if !res.IsSupportedServiceAgreement {
		return checkUnsupported(res)
	}
	if len(res.MissingCriticalFields) == 0 {
		return nil
	}
	for _, f := range contract.CriticalFields {
		if res.Brief.IsNull(f) || res.FieldConfidence[f] < contract.LowConfidence {
			return nil
		}
	}
	return intakeViolation("missing_critical_fields", "listed although every critical field is stated with confidence")
}

func checkUnsupported(res *contract.IntakeResult) error {
	for _, f := range contract.BriefFields {
		if f == "damage_cap_currency" {
			continue
		}
		if !res.Brief.IsNull(f) {
			return intakeViolation("brief."+f, "must be null for an unsupported request")
		}
		if res.FieldConfidence[f] >= contract.LowConfidence {
			return intakeViolation("field_confidence."+f, "must be low for an unsupported request")
		}
	}
	if len(res.MissingCriticalFields) > 0 {
		return intakeViolation("missing_critical_fields", "must be empty for an unsupported request")
	}
	if res.NextAction != contract.NextClarifyInputs {
		return intakeViolation("next_action", "must be clarify_inputs for an unsupported request")
	}
	return nil
}

func intakeViolation(path, msg string) error {
	return &SchemaViolation{Target: TargetIntake, Path: path, Message: msg}
}
