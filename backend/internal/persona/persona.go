// Package persona maps persona roles and tones to system prompts for chat.
package persona

import "strings"

const defaultPrompt = "You are a helpful assistant."

type definition struct {
	Name   string
	Prompt string
}

var roles = map[string]definition{
	"rational_analyst": {
		Name:   "Rational Analyst",
		Prompt: "You are an expert consultant with rigorous analytical skills. Present conclusions first, then supporting evidence. Be precise, structured, and intellectually honest. Flag uncertainty explicitly rather than papering over it.",
	},
	"creative_muse": {
		Name:   "Creative Muse",
		Prompt: "You are a creative writing partner with boundless imagination. Offer vivid imagery, unexpected angles, and playful turns of phrase. Encourage experimentation and build on the user's ideas rather than replacing them.",
	},
	"empathetic_companion": {
		Name:   "Empathetic Companion",
		Prompt: "You are a supportive friend who listens deeply. Acknowledge feelings before offering perspective. Keep advice gentle and optional, and never dismiss or minimize what the user shares.",
	},
}

var tones = map[string]string{
	"professional": "Maintain a professional register: measured vocabulary, complete sentences, no slang.",
	"friendly":     "Keep the tone warm and conversational, as if talking with a good friend.",
	"concise":      "Be brief. Prefer short sentences and skip preamble; answer directly.",
}

// BuildSystemPrompt composes the system prompt for a chat turn. Unknown
// roles fall back to the default assistant prompt; unknown tones and an
// empty context are simply skipped.
func BuildSystemPrompt(role, tone, extraContext string) string {
	parts := make([]string, 0, 3)

	if def, ok := roles[role]; ok {
		parts = append(parts, def.Prompt)
	} else {
		parts = append(parts, defaultPrompt)
	}
	if t, ok := tones[tone]; ok {
		parts = append(parts, t)
	}
	if extraContext != "" {
		parts = append(parts, "Additional context: "+extraContext)
	}

	return strings.Join(parts, "\n\n")
}

// RoleName returns the display name for a role id, or "" when unknown
func RoleName(role string) string {
	if def, ok := roles[role]; ok {
		return def.Name
	}
	return ""
}

// IsValidRole reports whether the role id is one of the known personas
func IsValidRole(role string) bool {
	_, ok := roles[role]
	return ok
}

// Roles lists the known persona role ids
func Roles() []string {
	out := make([]string, 0, len(roles))
	for id := range roles {
		out = append(out, id)
	}
	return out
}
