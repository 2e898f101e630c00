package persona

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPrompt_Default(t *testing.T) {
	prompt := BuildSystemPrompt("", "", "")
	assert.Equal(t, "You are a helpful assistant.", prompt)

	prompt = BuildSystemPrompt("nonexistent_role", "", "")
	assert.Equal(t, "You are a helpful assistant.", prompt)
}

func TestBuildSystemPrompt_RoleToneContext(t *testing.T) {
	prompt := BuildSystemPrompt("rational_analyst", "concise", "talking to a data engineer")

	parts := strings.Split(prompt, "\n\n")
	assert.Len(t, parts, 3)
	assert.Contains(t, parts[0], "expert consultant")
	assert.Contains(t, parts[1], "brief")
	assert.Equal(t, "Additional context: talking to a data engineer", parts[2])
}

func TestBuildSystemPrompt_UnknownToneSkipped(t *testing.T) {
	prompt := BuildSystemPrompt("creative_muse", "shouting", "")
	assert.NotContains(t, prompt, "shouting")
	assert.Contains(t, prompt, "creative writing partner")
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole("rational_analyst"))
	assert.True(t, IsValidRole("creative_muse"))
	assert.True(t, IsValidRole("empathetic_companion"))
	assert.False(t, IsValidRole("chaos_gremlin"))
	assert.False(t, IsValidRole(""))
}

func TestRoleName(t *testing.T) {
	assert.Equal(t, "Rational Analyst", RoleName("rational_analyst"))
	assert.Equal(t, "", RoleName("unknown"))
}

func TestRoles(t *testing.T) {
	assert.ElementsMatch(t, []string{"rational_analyst", "creative_muse", "empathetic_companion"}, Roles())
}
