package plan

import (
	"errors"
	"fmt"
	"strings"
)

// Feature is an AI flow exposed to users.
type Feature string

const (
	ResumeAnalysis   Feature = "resume_analysis"
	JobMatch         Feature = "job_match"
	CoverLetter      Feature = "cover_letter"
	ATSOptimize      Feature = "ats_optimize"
	CandidateMatch   Feature = "candidate_match"
	CandidateSummary Feature = "candidate_summary"
)

var ErrUnknownFeature = errors.New("unknown feature")

// minimum tier per feature
var featureTiers = map[Feature]Plan{
	ResumeAnalysis:   Free,
	JobMatch:         Free,
	CoverLetter:      Free,
	ATSOptimize:      Free,
	CandidateMatch:   Recruiter,
	CandidateSummary: Recruiter,
}

func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := featureTiers[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return f, nil
}

// MinTier is the lowest plan that unlocks f.
func (f Feature) MinTier() Plan {
	if p, ok := featureTiers[f]; ok {
		return p
	}
	return Recruiter
}

// Allows reports whether an effective tier unlocks f.
func Allows(tier Plan, f Feature) bool {
	return tier.Rank() >= f.MinTier().Rank()
}

// Features lists the features tier unlocks, in declaration order.
func Features(tier Plan) []Feature {
	var out []Feature
	for _, f := range []Feature{ResumeAnalysis, JobMatch, CoverLetter, ATSOptimize, CandidateMatch, CandidateSummary} {
		if Allows(tier, f) {
			out = append(out, f)
		}
	}
	return out
}
