package ranking

import (
	"strings"

	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/parse"
)

// Component weights of the combined detailed score.
const (
	SkillWeight      = 0.4
	ExperienceWeight = 0.4
	EducationWeight  = 0.2
)

// ExperienceLevel is the seniority a query asks for.
type ExperienceLevel string

const (
	LevelJunior ExperienceLevel = "junior"
	LevelMid    ExperienceLevel = "mid"
	LevelSenior ExperienceLevel = "senior"
)

// DetailedScores computes the heuristic fit of parsed fields against query.
// Candidates whose fields failed to parse score as if no fields were found.
func DetailedScores(fields *core.CandidateFields, query string) core.DetailedScore {
	var skills, experience, education []string
	if fields != nil && !fields.Failed() {
		skills, experience, education = fields.Skills, fields.Experience, fields.Education
	}

	score := core.DetailedScore{
		Skills:     skillMatch(skills, parse.ExtractSkills(query)),
		Experience: experienceMatch(experience, ExperienceLevelOf(query)),
		Education:  educationMatch(education, query),
	}
	score.Combined = score.Skills*SkillWeight +
		score.Experience*ExperienceWeight +
		score.Education*EducationWeight
	return score
}

// ExperienceLevelOf infers the seniority requested by query.
func ExperienceLevelOf(query string) ExperienceLevel {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "senior") || strings.Contains(lower, "lead"):
		return LevelSenior
	case strings.Contains(lower, "junior") || strings.Contains(lower, "entry"):
		return LevelJunior
	default:
		return LevelMid
	}
}

func skillMatch(candidate, required []string) float64 {
	if len(required) == 0 {
		return 0.5
	}
	have := make(map[string]bool, len(candidate))
	for _, s := range candidate {
		have[s] = true
	}
	matched := 0
	for _, s := range required {
		if have[s] {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

func experienceMatch(entries []string, level ExperienceLevel) float64 {
	if len(entries) == 0 {
		return 0.3
	}
	n := len(entries)
	switch {
	case level == LevelSenior && n >= 3,
		level == LevelMid && n >= 2,
		level == LevelJunior && n >= 1:
		return 1.0
	}
	return 0.6
}

func educationMatch(entries []string, query string) float64 {
	if len(entries) == 0 {
		return 0.5
	}
	lower := strings.ToLower(query)
	if strings.Contains(lower, "bachelor") || strings.Contains(lower, "degree") {
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e), "bachelor") {
				return 1.0
			}
		}
		return 0.7
	}
	return 0.8
}
