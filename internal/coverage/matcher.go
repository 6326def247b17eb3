// Package coverage decides which coordinators may review a stakeholder's
// requests. Everything here is pure and safe for concurrent use.
package coverage

import (
	"fmt"
	"sort"
	"strings"

	"event-request-backend/internal/domain"
)

type Code string

const (
	CodeInactive                 Code = "inactive"
	CodeAuthorityOutOfBand       Code = "authority-out-of-band"
	CodeOrganizationTypeMismatch Code = "organization-type-mismatch"
	CodeCoverageAreaMismatch     Code = "coverage-area-mismatch"
)

// Band is the half-open authority range [Min, Max) a reviewer must fall in.
type Band struct {
	Min int
	Max int
}

func (b Band) Contains(authority int) bool {
	return authority >= b.Min && authority < b.Max
}

// Details carries the compared sets so a rejection can be audited.
type Details struct {
	CoordinatorID        string   `json:"coordinator_id"`
	Authority            int      `json:"authority"`
	AuthorityMin         int      `json:"authority_min"`
	AuthorityMax         int      `json:"authority_max"`
	StakeholderOrgTypes  []string `json:"stakeholder_organization_types,omitempty"`
	CoordinatorOrgTypes  []string `json:"coordinator_organization_types,omitempty"`
	StakeholderLocations []string `json:"stakeholder_locations,omitempty"`
	CoverageUnits        []string `json:"coverage_units,omitempty"`
	MatchedCoverageArea  string   `json:"matched_coverage_area,omitempty"`
	MatchedUnit          string   `json:"matched_unit,omitempty"`
}

type Result struct {
	Valid   bool    `json:"valid"`
	Code    Code    `json:"code,omitempty"`
	Reason  string  `json:"reason,omitempty"`
	Details Details `json:"details"`
}

// Matcher evaluates eligibility against a configured authority band.
type Matcher struct {
	band Band
}

func NewMatcher(band Band) *Matcher {
	return &Matcher{band: band}
}

// IsEligible applies, in order: active flag, authority band, organization
// type overlap and geographic containment. The first failing rule decides
// the result.
func (m *Matcher) IsEligible(s domain.StakeholderProfile, c domain.CoordinatorProfile) Result {
	res := Result{Details: Details{
		CoordinatorID:       c.UserID,
		Authority:           c.Authority,
		AuthorityMin:        m.band.Min,
		AuthorityMax:        m.band.Max,
		StakeholderOrgTypes: s.OrganizationTypes,
		CoordinatorOrgTypes: c.OrganizationTypes,
	}}

	if !c.IsActive {
		return res.fail(CodeInactive, fmt.Sprintf("Coordinator %s is inactive", c.UserID))
	}

	if !m.band.Contains(c.Authority) {
		return res.fail(CodeAuthorityOutOfBand, fmt.Sprintf(
			"Coordinator authority %d is out of band [%d, %d)", c.Authority, m.band.Min, m.band.Max))
	}

	if !orgTypesOverlap(s.OrganizationTypes, c.OrganizationTypes) {
		return res.fail(CodeOrganizationTypeMismatch, fmt.Sprintf(
			"Organization type mismatch: stakeholder %v, coordinator %v", s.OrganizationTypes, c.OrganizationTypes))
	}

	locations := stakeholderLocations(s)
	res.Details.StakeholderLocations = locations
	res.Details.CoverageUnits = coverageUnits(c.CoverageAreas)
	if len(locations) == 0 {
		return res.fail(CodeCoverageAreaMismatch, "Stakeholder has no location and is not within coordinator's coverage areas")
	}

	area, unit, ok := findCoverage(locations, c.CoverageAreas)
	if !ok {
		return res.fail(CodeCoverageAreaMismatch, fmt.Sprintf(
			"Stakeholder location %s is not within coordinator's coverage areas", locations[0]))
	}
	res.Details.MatchedCoverageArea = area
	res.Details.MatchedUnit = unit
	res.Valid = true
	return res
}

// ResolveEligibleCoordinators filters pool down to eligible coordinators,
// ordered by name then id. The optional observe callback sees every result.
func (m *Matcher) ResolveEligibleCoordinators(s domain.StakeholderProfile, pool []domain.CoordinatorProfile, observe func(domain.CoordinatorProfile, Result)) []domain.CoordinatorSummary {
	eligible := make([]domain.CoordinatorSummary, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	for _, c := range pool {
		if _, dup := seen[c.UserID]; dup {
			continue
		}
		res := m.IsEligible(s, c)
		if observe != nil {
			observe(c, res)
		}
		if res.Valid {
			seen[c.UserID] = struct{}{}
			eligible = append(eligible, c.Summary())
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Name != eligible[j].Name {
			return eligible[i].Name < eligible[j].Name
		}
		return eligible[i].UserID < eligible[j].UserID
	})
	return eligible
}

func (r Result) fail(code Code, reason string) Result {
	r.Valid = false
	r.Code = code
	r.Reason = reason
	return r
}

// NormalizeID folds display names and ids onto one key space, so
// "Naga City" and "naga_city" compare equal.
func NormalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.Join(strings.Fields(id), "_")
	return strings.ReplaceAll(id, "-", "_")
}

// An empty stakeholder set matches every coordinator.
func orgTypesOverlap(stakeholder, coordinator []string) bool {
	wanted := make(map[string]struct{}, len(stakeholder))
	for _, t := range stakeholder {
		if n := NormalizeID(t); n != "" {
			wanted[n] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return true
	}
	for _, t := range coordinator {
		if _, ok := wanted[NormalizeID(t)]; ok {
			return true
		}
	}
	return false
}

// stakeholderLocations lists the ids a coverage unit may match: the
// municipality (or the district when no municipality is set), followed by
// any resolved ancestors.
func stakeholderLocations(s domain.StakeholderProfile) []string {
	var out []string
	add := func(id string) {
		n := NormalizeID(id)
		if n == "" {
			return
		}
		for _, o := range out {
			if o == n {
				return
			}
		}
		out = append(out, n)
	}
	if s.MunicipalityID != "" {
		add(s.MunicipalityID)
	} else {
		add(s.District)
	}
	for _, a := range s.AncestorIDs {
		add(a)
	}
	return out
}

// findCoverage matches ids against units of any kind, so a city that is also
// its own district matches whether it was listed as a municipality or as a
// district.
func findCoverage(locations []string, areas []domain.CoverageArea) (string, string, bool) {
	for _, area := range areas {
		for _, u := range area.Units {
			unit := NormalizeID(u.ID)
			for _, loc := range locations {
				if unit == loc {
					return area.ID, unit, true
				}
			}
		}
	}
	return "", "", false
}

func coverageUnits(areas []domain.CoverageArea) []string {
	var out []string
	for _, a := range areas {
		for _, u := range a.Units {
			out = append(out, string(u.Kind)+":"+NormalizeID(u.ID))
		}
	}
	return out
}
