package service

import "time"

// Tier is the urgency level of a lot's approaching expiry
type Tier string

const (
	// TierNormal means the lot is more than 90 days from expiry.
	// It is never persisted; only the four urgent tiers produce alerts.
	TierNormal   Tier = "NORMAL"
	TierWatch    Tier = "WATCH"
	TierElevated Tier = "ELEVATED"
	TierCritical Tier = "CRITICAL"
	TierExpired  Tier = "EXPIRED"
)

// Tier thresholds in days until expiry
const (
	criticalThresholdDays = 30
	elevatedThresholdDays = 60
	watchThresholdDays    = 90
)

// DaysUntil returns the number of whole calendar days between now and the
// expiry date, both taken as UTC dates. Time of day is ignored: a lot
// expiring later today is 0 days out, one that expired yesterday is -1.
func DaysUntil(now, expiry time.Time) int {
	n := now.UTC()
	e := expiry.UTC()

	nDate := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	eDate := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)

	return int(eDate.Sub(nDate).Hours() / 24)
}

// startOfDayUTC truncates a time to its UTC calendar date. Lot dates are
// stored as plain dates, so queries must compare against a date boundary
// rather than a wall-clock timestamp.
func startOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Classify maps days-until-expiry to an urgency tier
func Classify(daysUntil int) Tier {
	switch {
	case daysUntil < 0:
		return TierExpired
	case daysUntil <= criticalThresholdDays:
		return TierCritical
	case daysUntil <= elevatedThresholdDays:
		return TierElevated
	case daysUntil <= watchThresholdDays:
		return TierWatch
	default:
		return TierNormal
	}
}

// ClassifyAt classifies a lot's expiry date against a reference time
func ClassifyAt(now, expiry time.Time) Tier {
	return Classify(DaysUntil(now, expiry))
}
