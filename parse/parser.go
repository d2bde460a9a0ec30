package parse

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/poiesic/rankit/core"
)

// DefaultSkillKeywords are matched case-insensitively as substrings.
var DefaultSkillKeywords = []string{
	"python", "javascript", "java", "react", "node.js", "sql", "html", "css",
	"aws", "docker", "kubernetes", "git", "linux", "machine learning",
	"data analysis", "project management", "agile", "scrum",
}

// DefaultCertificationKeywords are matched case-insensitively as substrings.
var DefaultCertificationKeywords = []string{
	"aws certified", "microsoft certified", "cisco certified",
	"pmp", "scrum master", "agile certified",
}

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z\s.]+$`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)

	educationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(bachelor|master|phd|doctorate|b\.s\.|m\.s\.|b\.a\.|m\.a\.)[ \t\w]*`),
		regexp.MustCompile(`(?i)(university|college|institute)[ \t\w]*`),
	}
	experiencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(software engineer|developer|manager|analyst|consultant|director)`),
		regexp.MustCompile(`(?i)(senior|junior|lead|principal)[ \t\w]*`),
	}

	summaryKeywords = []string{"summary", "objective", "profile", "about"}
)

const (
	nameSearchLines  = 5
	maxNameLength    = 50
	summaryLines     = 4
	minSummaryLength = 20
)

// Parser extracts candidate fields from document text.
// It is safe for concurrent use.
type Parser struct {
	skills         []string
	certifications []string
	logger         *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithSkillKeywords replaces the skill keyword list.
func WithSkillKeywords(keywords []string) Option {
	return func(p *Parser) {
		p.skills = keywords
	}
}

// WithCertificationKeywords replaces the certification keyword list.
func WithCertificationKeywords(keywords []string) Option {
	return func(p *Parser) {
		p.certifications = keywords
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a parser with the default keyword lists.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		skills:         DefaultSkillKeywords,
		certifications: DefaultCertificationKeywords,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "field-parser")
	return p
}

// Parse extracts fields from text. It never returns an error: a failure is
// recorded in the Error field and the remaining fields are left empty.
func (p *Parser) Parse(ctx context.Context, text string) (fields core.CandidateFields) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("recovered from panic while parsing", "panic", r)
			fields = core.CandidateFields{Error: fmt.Sprintf("parse failed: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return core.CandidateFields{Error: err.Error()}
	}

	lower := strings.ToLower(text)
	return core.CandidateFields{
		Name:           extractName(text),
		Email:          emailPattern.FindString(text),
		Phone:          strings.TrimSpace(phonePattern.FindString(text)),
		Skills:         matchKeywords(lower, p.skills),
		Education:      findAll(text, educationPatterns),
		Experience:     findAll(text, experiencePatterns),
		Certifications: matchKeywords(lower, p.certifications),
		Summary:        extractSummary(text),
	}
}

// ExtractSkills returns the default skill keywords mentioned in text.
func ExtractSkills(text string) []string {
	return matchKeywords(strings.ToLower(text), DefaultSkillKeywords)
}

// extractName returns the first short line among the leading lines that
// looks like a person's name.
func extractName(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > nameSearchLines {
		lines = lines[:nameSearchLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(line) >= maxNameLength {
			continue
		}
		if namePattern.MatchString(line) && len(strings.Fields(line)) >= 2 {
			return line
		}
	}
	return ""
}

func extractSummary(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lower := strings.ToLower(line)
		if !containsAny(lower, summaryKeywords) {
			continue
		}
		end := i + 1 + summaryLines
		if end > len(lines) {
			end = len(lines)
		}
		summary := strings.TrimSpace(strings.Join(lines[i+1:end], " "))
		if len(summary) > minSummaryLength {
			return summary
		}
	}
	return ""
}

func matchKeywords(lower string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

func findAll(text string, patterns []*regexp.Regexp) []string {
	var found []string
	for _, re := range patterns {
		for _, m := range re.FindAllString(text, -1) {
			if m = strings.TrimSpace(m); m != "" {
				found = append(found, m)
			}
		}
	}
	return found
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
