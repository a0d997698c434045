// Package match ranks study groups against a user's study preferences.
package match

import (
	"sort"
	"strings"
)

// Strategies
const (
	StrategyRecommended = "recommended"
	StrategyQuick       = "quick"
)

// Profile is the part of a user's profile groups are matched against.
type Profile struct {
	Subjects       []string
	EducationLevel string
	StudyStyle     string
	Timezone       string
}

// Candidate is a group considered for a match.
type Candidate struct {
	GroupID       string
	Name          string
	Tags          []string
	MemberCount   int
	MaxMembers    int
	IsPublic      bool
	IsMember      bool
	OwnerTimezone string
}

// Full reports whether the group reached its capacity.
func (c Candidate) Full() bool {
	return c.MaxMembers > 0 && c.MemberCount >= c.MaxMembers
}

type Result struct {
	Candidate Candidate
	Score     float64
}

// Weights of each criterion. A zero weight disables the criterion.
type Weights struct {
	Subject        float64 // per subject overlapping a tag
	EducationLevel float64 // education level overlaps a tag
	StudyStyle     float64 // study style overlaps a tag
	Tag            float64 // per group tag
	Member         float64 // per group member
	Timezone       float64 // same timezone as the group owner
}

// MatchScorer scores candidates and returns the best ones.
type MatchScorer interface {
	Score(p Profile, c Candidate) float64
	// Rank drops ineligible candidates, sorts the rest by descending score and truncates to the scorer's limit.
	Rank(p Profile, candidates []Candidate) []Result
}

type WeightedScorer struct {
	Weights Weights
	Limit   int
}

var _ MatchScorer = WeightedScorer{}

var presets = map[string]WeightedScorer{
	// dashboard recommendations
	StrategyRecommended: {
		Weights: Weights{Subject: 10, EducationLevel: 5, StudyStyle: 3, Tag: 0.5, Member: 0.2},
		Limit:   6,
	},
	// "get matched"
	StrategyQuick: {
		Weights: Weights{Subject: 1, Timezone: 1},
		Limit:   3,
	},
}

// NewScorer returns the preset scorer for strategy, falling back to StrategyRecommended.
func NewScorer(strategy string) WeightedScorer {
	if s, ok := presets[strings.ToLower(strategy)]; ok {
		return s
	}
	return presets[StrategyRecommended]
}

// ValidStrategy reports whether strategy names a preset.
func ValidStrategy(strategy string) bool {
	_, ok := presets[strings.ToLower(strategy)]
	return ok
}

func (s WeightedScorer) Score(p Profile, c Candidate) float64 {
	tags := lowerAll(c.Tags)
	w := s.Weights

	var score float64
	if w.Subject != 0 {
		var matches int
		for _, subj := range p.Subjects {
			if overlapsAny(strings.ToLower(subj), tags) {
				matches++
			}
		}
		score += w.Subject * float64(matches)
	}
	if w.EducationLevel != 0 && overlapsAny(strings.ToLower(p.EducationLevel), tags) {
		score += w.EducationLevel
	}
	if w.StudyStyle != 0 && overlapsAny(strings.ToLower(p.StudyStyle), tags) {
		score += w.StudyStyle
	}
	if w.Timezone != 0 && p.Timezone != "" && strings.EqualFold(p.Timezone, c.OwnerTimezone) {
		score += w.Timezone
	}
	score += w.Tag * float64(len(c.Tags))
	score += w.Member * float64(c.MemberCount)
	return score
}

func (s WeightedScorer) Rank(p Profile, candidates []Candidate) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if c.IsMember || c.Full() || !c.IsPublic {
			continue
		}
		results = append(results, Result{Candidate: c, Score: s.Score(p, c)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i], results[j]
		if ri.Score != rj.Score {
			return ri.Score > rj.Score
		}
		if ri.Candidate.MemberCount != rj.Candidate.MemberCount {
			return ri.Candidate.MemberCount > rj.Candidate.MemberCount
		}
		return ri.Candidate.Name < rj.Candidate.Name
	})
	if s.Limit > 0 && len(results) > s.Limit {
		results = results[:s.Limit]
	}
	return results
}

// overlapsAny reports whether pref is a substring of a tag or a tag is a substring of pref. Empty values never match.
func overlapsAny(pref string, tags []string) bool {
	pref = strings.TrimSpace(pref)
	if pref == "" {
		return false
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if strings.Contains(tag, pref) || strings.Contains(pref, tag) {
			return true
		}
	}
	return false
}

func lowerAll(ss []string) []string {
	lowered := make([]string, len(ss))
	for i, s := range ss {
		lowered[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return lowered
}
