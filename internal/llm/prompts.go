package llm

import (
	"fmt"
	"strings"
)

const extractionSystem = `You are a lead research analyst building structured data from raw website content.
The ideal customer profile is: %s.
Only use facts explicitly present in the supplied content. Do not guess or fabricate.
If a field is not present, set it to null (or [] for arrays).
Return concise values.

Respond with a single JSON object and nothing else. It must contain exactly these keys:
- company_name: string or null (legal or brand name)
- company_description: string or null (1-2 sentences)
- industry: string or null
- headquarters: string or null (city, state/province, country)
- employee_count: string or null (employee range if stated)
- contact_urls: array of strings (contact or lead capture URLs on the page)
- emails: array of {"value": string, "confidence": number 0-1, "context": string or null}
- phones: array of {"value": string, "confidence": number 0-1, "context": string or null}
- linkedin_urls: array of strings
- other_social: array of strings
- notes: string or null (signals relevant to the ICP)
- confidence: number 0-1 (how sure you are of the answer overall)
- missing_signals: array of strings`

const scoringSystem = `You are evaluating whether a company is a good fit for a B2B sales lead list.
Return a fit score 0-100, confidence 0-1, rationale, and any blockers.

Respond with a single JSON object and nothing else, with exactly these keys:
- fit_score: number 0-100
- confidence: number 0-1
- rationale: string
- blockers: array of strings`

const summarySystem = `Provide a concise, sales-ready summary highlighting why the company is interesting.

Respond with a single JSON object and nothing else, with exactly these keys:
- summary: string
- key_signals: array of strings`

var (
	extractionKeys = []string{
		"company_name", "company_description", "industry", "headquarters",
		"employee_count", "contact_urls", "emails", "phones", "linkedin_urls",
		"other_social", "notes", "confidence", "missing_signals",
	}
	scoringKeys = []string{"fit_score", "confidence", "rationale", "blockers"}
	summaryKeys = []string{"summary", "key_signals"}
)

func extractionSystemPrompt(icp string) string {
	if strings.TrimSpace(icp) == "" {
		icp = "not provided"
	}
	return fmt.Sprintf(extractionSystem, icp)
}

func extractionUserPrompt(domain, url, markdown, html string) string {
	content := markdown
	if content == "" {
		content = html
	}
	if content == "" {
		content = "No content"
	}
	return fmt.Sprintf("Domain: %s\nURL: %s\n---\n%s", domain, url, content)
}

func scoringUserPrompt(icp, leadJSON string) string {
	return fmt.Sprintf("Ideal customer profile:\n%s\n\nCompany facts:\n%s", icp, leadJSON)
}
