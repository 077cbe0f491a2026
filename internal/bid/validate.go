package bid

import "fmt"

var validCompliance = map[Compliance]bool{
	ComplianceFull:        true,
	CompliancePartial:     true,
	ComplianceNone:        true,
	ComplianceAlternative: true,
}

var validImpact = map[DeviationImpact]bool{
	ImpactMinor:    true,
	ImpactModerate: true,
	ImpactMajor:    true,
	ImpactCritical: true,
}

// Validate checks range and enum constraints and returns one message per
// offending field. It runs before the recompute step on every persist.
func (it *Item) Validate() map[string]string {
	errs := map[string]string{}
	if it.BidID == 0 {
		errs["bid_id"] = "bid reference required"
	}
	if it.ProductID == 0 {
		errs["product_id"] = "product reference required"
	}
	if it.Quantity <= 0 {
		errs["quantity"] = "quantity must be positive"
	}
	if it.UnitPrice < 0 {
		errs["unit_price"] = "unit price cannot be negative"
	}
	if it.DeliveryDays < 0 {
		errs["delivery_days"] = "delivery time cannot be negative"
	}
	if it.SpecCompliance != "" && !validCompliance[it.SpecCompliance] {
		errs["specifications_compliance"] = fmt.Sprintf("unknown compliance %q", it.SpecCompliance)
	}
	for _, score := range []struct {
		name  string
		value float64
	}{
		{"compliance_scores.technical", it.Scores.Technical},
		{"compliance_scores.quality", it.Scores.Quality},
		{"compliance_scores.documentation", it.Scores.Documentation},
	} {
		if score.value < 0 || score.value > 100 {
			errs[score.name] = "score must be between 0 and 100"
		}
	}
	for i, d := range it.Deviations {
		if !validImpact[d.Impact] {
			errs[fmt.Sprintf("deviations[%d].impact", i)] = fmt.Sprintf("unknown impact %q", d.Impact)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
