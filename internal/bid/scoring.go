package bid

import "time"

// ScoringConfig collects the weights and constants used by evaluation and the
// derived competitiveness metrics. All values are overridable; the defaults
// mirror the evaluation policy procurement runs with today.
type ScoringConfig struct {
	TechnicalWeight  float64
	FinancialWeight  float64
	DeliveryWeight   float64
	QualityWeight    float64
	ComplianceWeight float64

	// Price competitiveness is a linear scale: 100 - unitPrice/PriceScale*PricePenalty.
	PriceScale   float64
	PricePenalty float64
	// Delivery competitiveness: 100 - deliveryDays*DeliveryPenalty.
	DeliveryPenalty float64

	ValuePriceWeight    float64
	ValueDeliveryWeight float64

	RiskNonCompliant int
	RiskPerDeviation int
	RiskSlowDelivery int
	RiskAlternative  int
	RiskNoWarranty   int
	SlowDeliveryDays int

	HighRiskThreshold   int
	MediumRiskThreshold int
}

// DefaultScoringConfig returns the standard evaluation policy.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TechnicalWeight:  0.25,
		FinancialWeight:  0.35,
		DeliveryWeight:   0.20,
		QualityWeight:    0.15,
		ComplianceWeight: 0.05,

		PriceScale:      1000,
		PricePenalty:    10,
		DeliveryPenalty: 2,

		ValuePriceWeight:    0.6,
		ValueDeliveryWeight: 0.4,

		RiskNonCompliant: 30,
		RiskPerDeviation: 10,
		RiskSlowDelivery: 20,
		RiskAlternative:  25,
		RiskNoWarranty:   15,
		SlowDeliveryDays: 30,

		HighRiskThreshold:   60,
		MediumRiskThreshold: 30,
	}
}

// AddDeviation appends a deviation and downgrades a fully compliant line to
// partially compliant. Non-compliant and alternative-offered lines keep their
// stronger classification.
func (it *Item) AddDeviation(d Deviation) error {
	if d.Aspect == "" || d.Description == "" {
		return ErrValidation
	}
	if d.Impact == "" {
		d.Impact = ImpactMinor
	}
	it.Deviations = append(it.Deviations, d)
	if it.SpecCompliance == ComplianceFull || it.SpecCompliance == "" {
		it.SpecCompliance = CompliancePartial
	}
	return nil
}

// SetAlternative overwrites the alternative-offer block and marks the line as
// an alternative offer.
func (it *Item) SetAlternative(alt Alternative) {
	alt.Offered = true
	it.Alternative = alt
	it.SpecCompliance = ComplianceAlternative
}

// SetEvaluationScores stores the component scores and derives the weighted
// overall.
func (it *Item) SetEvaluationScores(scores EvaluationScores, cfg ScoringConfig, evaluatedBy int64, at time.Time) error {
	for _, v := range []float64{scores.Technical, scores.Financial, scores.Delivery, scores.Quality, scores.Compliance} {
		if v < 0 || v > 100 {
			return ErrValidation
		}
	}
	scores.Overall = scores.Technical*cfg.TechnicalWeight +
		scores.Financial*cfg.FinancialWeight +
		scores.Delivery*cfg.DeliveryWeight +
		scores.Quality*cfg.QualityWeight +
		scores.Compliance*cfg.ComplianceWeight
	scores.EvaluatedBy = evaluatedBy
	scores.EvaluatedAt = at
	it.Evaluation = scores
	return nil
}

// Recompute refreshes every derived field from stored inputs. It runs before
// each persist and is idempotent: supplied derived values are never trusted.
func (it *Item) Recompute() {
	it.Total = it.UnitPrice * it.Quantity
	if it.Scores.Overall == 0 {
		it.Scores.Overall = (it.Scores.Technical + it.Scores.Quality + it.Scores.Documentation) / 3
	}
	if it.Alternative.Offered && it.Alternative.OriginalPrice > 0 && it.Alternative.AlternativePrice > 0 {
		it.Alternative.PriceDifference = it.Alternative.AlternativePrice - it.Alternative.OriginalPrice
		it.Alternative.PriceDifferencePct = it.Alternative.PriceDifference / it.Alternative.OriginalPrice * 100
	}
}

// Metrics derives the read-only competitiveness and risk figures.
func (it *Item) Metrics(cfg ScoringConfig) ItemMetrics {
	price := clamp(100-it.UnitPrice/cfg.PriceScale*cfg.PricePenalty, 0, 100)
	delivery := clamp(100-float64(it.DeliveryDays)*cfg.DeliveryPenalty, 0, 100)
	value := price*cfg.ValuePriceWeight + delivery*cfg.ValueDeliveryWeight

	risk := 0
	if it.SpecCompliance != ComplianceFull {
		risk += cfg.RiskNonCompliant
	}
	risk += cfg.RiskPerDeviation * len(it.Deviations)
	if it.DeliveryDays > cfg.SlowDeliveryDays {
		risk += cfg.RiskSlowDelivery
	}
	if it.Alternative.Offered {
		risk += cfg.RiskAlternative
	}
	if it.Warranty.PeriodMonths == 0 {
		risk += cfg.RiskNoWarranty
	}

	level := RiskLow
	switch {
	case risk >= cfg.HighRiskThreshold:
		level = RiskHigh
	case risk >= cfg.MediumRiskThreshold:
		level = RiskMedium
	}

	return ItemMetrics{
		PriceCompetitiveness:    price,
		DeliveryCompetitiveness: delivery,
		TotalValueScore:         value,
		RiskScore:               risk,
		RiskLevel:               level,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
