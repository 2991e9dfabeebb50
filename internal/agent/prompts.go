package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Prompt slot names stored in a tenant's prompt data.
const (
	SlotAgentName           = "agent_name"
	SlotAgentBackstory      = "agent_backstory"
	SlotBusinessDescription = "business_description"
	SlotKnowledgeBase       = "knowledge_base"
)

const (
	fallbackAgentName           = "AI Assistant"
	fallbackAgentBackstory      = "You are unmatched in your helpfulness."
	fallbackBusinessDescription = "A generic business."
	fallbackKnowledgeBase       = "No specific knowledge base provided."

	// QualifiedMarker is the literal the scoring rubric asks the model to emit
	// for a qualified lead.
	QualifiedMarker = "ICP: Yes"

	// MaxAnalysisChars bounds the analysis text written back to the subscriber.
	MaxAnalysisChars = 2000
)

// BuildSystemPrompt renders the conversational persona from prompt slots.
// Missing or empty slots fall back to fixed defaults.
func BuildSystemPrompt(data map[string]string) string {
	return fmt.Sprintf(`You are %s.

BACKSTORY:
%s

BUSINESS CONTEXT:
%s

KNOWLEDGE BASE:
%s

INSTRUCTIONS:
- Keep answers concise and relevant.
- Use the knowledge base to answer questions.
- If you don't know, ask for clarification.`,
		slot(data, SlotAgentName, fallbackAgentName),
		slot(data, SlotAgentBackstory, fallbackAgentBackstory),
		slot(data, SlotBusinessDescription, fallbackBusinessDescription),
		slot(data, SlotKnowledgeBase, fallbackKnowledgeBase),
	)
}

func slot(data map[string]string, key, fallback string) string {
	if v := data[key]; v != "" {
		return v
	}
	return fallback
}

// BuildScoringPrompt combines the qualification rubric with the profile
// snapshot, already serialized as indented JSON.
func BuildScoringPrompt(profileJSON string) string {
	return leadScoringRubric + "\n\nLead Data:\n" + profileJSON
}

// IsQualified reports whether scoring output marks the lead as qualified.
func IsQualified(analysis string) bool {
	return strings.Contains(analysis, QualifiedMarker)
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

const leadScoringRubric = `You are a Lead Analysis Expert. Your task is to create an accurate user profile based on lead information provided to you, without adding any information not provided.

Output the following information:

First Name: (if there is a first name present)
Occupation: (the leads occupation, if mentioned)
Age: (the leads age, if mentioned)
Gender: (the leads gender, if obvious)
Personalization: (specific details about the lead which can be used to personalize a message)
Topics: (topics the lead talks about)
ICP: Yes/No

**ICP CRITERIA - Mark as "Yes" if 2+ criteria are met:**

PRIMARY QUALIFIERS (high weight):
- Shows evidence of owning/running a business (entrepreneur, founder, CEO, coach, consultant, agency owner, course creator, freelancer)
- Mentions selling products/services online
- References Instagram marketing, social media marketing, or DM sales
- Indicates current revenue/income from business activities

SECONDARY QUALIFIERS (medium weight):
- Shows interest in: online marketing, lead generation, sales, business growth, scaling
- Mentions coaching, consulting, or service-based business
- References making money online, passive income, or entrepreneurship
- Has business-related content in bio/posts
- Male (matches primary demographic but not required)

DISQUALIFIERS (automatic "NO ICP MATCH"):
- Corporate employee with no side business indicators
- Student with no entrepreneurial interests
- Clearly personal/lifestyle account only
- No business/entrepreneurship indicators whatsoever

RULES:

If any lead information includes a website link, such as a business website (.com .co .ai), remove the domain ending and keep just the business name.`
