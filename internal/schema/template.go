// Package schema describes the record shapes produced by extraction and
// enrichment, and renders, repairs and validates records against them.
package schema

import (
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Kind is the JSON shape of a template field
type Kind int

const (
	KindString Kind = iota
	KindObject
	KindList
)

// Field is one entry of a template. Object fields and list items are
// described by Fields.
type Field struct {
	Name        string
	Kind        Kind
	Fields      []Field
	Description string
}

// Record is a decoded document conforming to a Template
type Record map[string]any

// Template is an ordered, nested field specification.
type Template struct {
	Name   string
	Fields []Field

	once     sync.Once
	compiled *gojsonschema.Schema
	compErr  error
}

// Keys returns the top-level keys in declaration order
func (t *Template) Keys() []string {
	keys := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		keys = append(keys, f.Name)
	}
	return keys
}

// Field looks up a top-level field by name
func (t *Template) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Enrichment returns the enrichment block of the template
func (t *Template) Enrichment() Field {
	f, _ := t.Field(EnrichmentKey)
	return f
}

const (
	// EnrichmentKey is the only key replaced by the enrichment merge
	EnrichmentKey = "enrichment"
	// PersonalityKey holds the five-trait personality block of a résumé
	PersonalityKey = "personality_traits"
)

// TraitLevels are the accepted ratings of a personality trait
var TraitLevels = []string{"High", "Moderate", "Low"}

func str(name, description string) Field {
	return Field{Name: name, Kind: KindString, Description: description}
}

var skillsField = Field{Name: "skills", Kind: KindList, Fields: []Field{
	str("specialized_skill", ""),
	str("common_skill", ""),
}}

var experienceField = Field{Name: "experience", Kind: KindList, Fields: []Field{
	str("job_title", ""),
	str("company", ""),
	str("start_date", ""),
	str("end_date", ""),
	str("description", ""),
}}

var educationField = Field{Name: "education", Kind: KindList, Fields: []Field{
	str("degree", ""),
	str("institution", ""),
	str("start_year", ""),
	str("end_year", ""),
}}

var personalityField = Field{Name: PersonalityKey, Kind: KindObject, Fields: []Field{
	str("openness", "How open is the candidate to new experiences and ideas?"),
	str("conscientiousness", "How organized and dependable is the candidate?"),
	str("extraversion", "How outgoing and energetic is the candidate?"),
	str("agreeableness", "How friendly and compassionate is the candidate?"),
	str("neuroticism", "How emotionally stable is the candidate?"),
}}

// Resume is the template for a candidate résumé.
var Resume = &Template{
	Name: "resume",
	Fields: []Field{
		str("name", ""),
		str("email", ""),
		str("phone", ""),
		str("location", ""),
		str("summary", ""),
		skillsField,
		experienceField,
		educationField,
		{Name: EnrichmentKey, Kind: KindObject, Fields: []Field{
			str("employment_pattern_progression", "Describe the career trajectory and progression."),
			str("company_type_sector", "Identify the type and sector of companies worked for."),
			str("education_quality_ranking", "Assess the quality and ranking of educational institutions."),
			str("skill_demand_market_relevance", "Evaluate the relevance of skills in the current market."),
			str("leadership_experience", "Highlight leadership roles and responsibilities."),
			str("budget_project_management", "Detail experience in managing budgets and projects."),
			str("international_experience_mobility", "Indicate international exposure and mobility."),
			str("soft_skills_from_sales_calls", "Infer soft skills demonstrated in sales or communication."),
			personalityField,
			str("future_career_goals", "Predict future career aspirations based on the career path."),
			str("salary_expectations", "Estimate salary expectations based on experience."),
			str("jd_implied_preferences", "Infer preferences the candidate implies about a target role."),
			str("cultural_fit_indicators", "Suggest cultural fit indicators for potential roles."),
		}},
	},
}

// Job is the template for a job description. It mirrors the résumé shape so
// the two records can be compared side by side.
var Job = &Template{
	Name: "job",
	Fields: []Field{
		str("location", ""),
		str("summary", ""),
		skillsField,
		experienceField,
		educationField,
		{Name: EnrichmentKey, Kind: KindObject, Fields: []Field{
			str("employment_pattern_progression", "Describe the required career trajectory and progression for an ideal candidate."),
			str("company_type_sector", "Identify the type and sector of the company."),
			str("education_quality_ranking", "Describe the expected quality and ranking of the candidate's educational institutions."),
			str("skill_demand_market_relevance", "Evaluate the relevance of the required skills in the current market."),
			str("leadership_experience", "Highlight leadership roles and responsibilities expected of a candidate."),
			str("budget_project_management", "Detail the expected experience in managing budgets and projects."),
			str("international_experience_mobility", "Indicate the international exposure and mobility expected of a candidate."),
			str("soft_skills_from_sales_calls", "Infer the soft skills the role needs in sales or communication."),
			str("future_career_goals", "Describe the career growth this role offers."),
			str("salary_expectations", "Estimate the salary range for this role."),
			str("jd_implied_preferences", "Infer preferences implied but not stated by the job description."),
			str("cultural_fit_indicators", "Suggest cultural fit indicators for potential candidates."),
		}},
	},
}

// ForKind returns the template registered under name ("resume" or "job").
func ForKind(name string) (*Template, bool) {
	switch name {
	case Resume.Name:
		return Resume, true
	case Job.Name:
		return Job, true
	}
	return nil, false
}
