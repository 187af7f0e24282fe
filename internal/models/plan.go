package models

import (
	"math"
	"time"
)

// Plan is the publisher's subscription tier. Billing lives elsewhere; only the
// limits below are enforced here.
type Plan string

const (
	PlanFree       Plan = "FREE"
	PlanPro        Plan = "PRO"
	PlanBusiness   Plan = "BUSINESS"
	PlanEnterprise Plan = "ENTERPRISE"
)

// Unlimited marks a limit that is never reached.
const Unlimited = math.MaxInt

type PlanLimits struct {
	Domains              int
	Authors              int
	CertificatesPerMonth int
}

var planLimits = map[Plan]PlanLimits{
	PlanFree:       {Domains: 1, Authors: 3, CertificatesPerMonth: 5},
	PlanPro:        {Domains: 3, Authors: 10, CertificatesPerMonth: Unlimited},
	PlanBusiness:   {Domains: Unlimited, Authors: 50, CertificatesPerMonth: Unlimited},
	PlanEnterprise: {Domains: Unlimited, Authors: Unlimited, CertificatesPerMonth: Unlimited},
}

// Limits returns the plan's quotas; unknown plans get the free tier.
func (p Plan) Limits() PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

func (p Plan) Valid() bool {
	_, ok := planLimits[p]
	return ok
}

// MonthStart returns 00:00 UTC on the first day of t's month, the inclusive
// lower bound of the monthly certificate quota window.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
