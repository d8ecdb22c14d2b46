package prompts

// Stage names one generation round of the pipeline. The names match the
// per-operation sections of the AI configuration.
type Stage string

const (
	StageExtract       Stage = "extract"
	StageEnrich        Stage = "enrich"
	StageGaps          Stage = "gaps"
	StageQuestionnaire Stage = "questionnaire"
)

// Stages lists every stage in pipeline order
var Stages = []Stage{StageExtract, StageEnrich, StageGaps, StageQuestionnaire}

// Prompt pairs a system instruction with a user prompt template
type Prompt struct {
	System string
	User   string
}

// Defaults holds the built-in prompts. User prompts are text/template sources.
var Defaults = map[Stage]Prompt{
	StageExtract: {
		System: `You are an expert document parser. You convert resumes and job descriptions into JSON that follows a given schema exactly. You never invent information that is not in the source text.`,
		User: `You are an expert {{.Document}} parser. Convert the {{.Document}} text below into this JSON format. Fill in all the relevant fields and use an empty string for anything the text does not state. Leave the enrichment field empty.
{{- if .Job}}
Note that the JSON schema resembles a resume schema.
This is because the end goal is to match a resume with the job description.
However, keep in mind that the schema is to be filled with the job description data.
{{- end}}
The JSON schema is as follows:

{{.Schema}}

{{.Title}}:
"""
{{.Source}}
"""

Respond ONLY with raw JSON. Do not include explanations, markdown, or code block formatting.`,
	},

	StageEnrich: {
		System: `You are an expert recruiter. You infer career, market and personality attributes from structured resume and job description data and answer in JSON only.`,
		User: `You are an expert in {{.Title}} enrichment. Analyze the provided {{.Document}} data and infer the following enrichment parameters:
{{- range .Attributes}}
- {{.Name}}: {{.Description}}
{{- end}}
{{- if .Traits}}

Also, analyze the candidate's personality and behavioral traits according to the Big Five (OCEAN) model. Use the {{.Document}}'s tone, accomplishments, language, career path and the inferred enrichment parameters above to estimate the following traits:
{{- range .Traits}}
- {{.Name}}: {{.Description}}
{{- end}}

For each trait, provide a rating ({{.Levels}}).
{{- end}}

Here is the {{.Document}} data:
{{.Record}}

Fill in the enrichment parameters and return only the enrichment block in this JSON format:
{{.Schema}}

Respond ONLY with raw JSON. Do not include explanations, markdown, or code block formatting.`,
	},

	StageGaps: {
		System: `You are an experienced hiring manager reviewing a candidate against a job description. You are precise about what information is missing from the candidate's CV.`,
		User: `Candidate CV:
{{.Resume}}

Job Description:
{{.Job}}

Please answer the following questions:
1. Could you please give me an overview of this candidate's CV?
2. Could you expand on the missing information that you pointed out? Please explain why it should be important.
3. This candidate is applying for {{.Role}}. Given the role, what key information is missing from the CV? Sum it up in {{.MaxPoints}} points.

List the points of question 3 under a line reading "Key Missing Information:", one point per line, each line starting with "- ".`,
	},

	StageQuestionnaire: {
		System: `You are an interviewer preparing follow-up questions for a candidate. Your questions are open and respectful.`,
		User: `Based on the missing points identified earlier, please draw up {{if .Count}}a {{.Count}}-question{{else}}a short{{end}} questionnaire to be asked during an interview with the candidate.
These questions should be formulated in a way that can give the candidate the possibility to explain why that information is missing.
One question for each of the points mentioned below:

{{.Points}}

Write the questions as a numbered list with one question per line.`,
	},
}
