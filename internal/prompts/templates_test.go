package prompts

import (
	"strings"
	"testing"

	"github.com/Corphon/CoffeeWithCinema/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptsEmbedsIdea(t *testing.T) {
	ideas := []string{
		"A detective story",
		DemoStory,
		"multi\nline idea with 100% weird %s characters",
	}

	for _, idea := range ideas {
		stages := BuildPrompts(idea).Stages()
		require.Len(t, stages, 3)
		for _, st := range stages {
			assert.NotEmpty(t, strings.TrimSpace(st.Prompt))
			assert.Contains(t, st.Prompt, idea)
		}
	}
}

func TestStagesOrderAndBudgets(t *testing.T) {
	stages := BuildPrompts("idea").Stages()

	assert.Equal(t, models.SectionScreenplay, stages[0].Section)
	assert.Equal(t, models.SectionCharacters, stages[1].Section)
	assert.Equal(t, models.SectionSoundDesign, stages[2].Section)

	assert.Equal(t, 3000, stages[0].MaxTokens)
	assert.Equal(t, 2000, stages[1].MaxTokens)
	assert.Equal(t, 2000, stages[2].MaxTokens)
}

func TestPromptsEndWithCue(t *testing.T) {
	p := BuildPrompts("idea")

	assert.True(t, strings.HasSuffix(p.Screenplay, "Screenplay:"))
	assert.True(t, strings.HasSuffix(p.Characters, "Character Profiles:"))
	assert.True(t, strings.HasSuffix(p.SoundDesign, "Sound Design Plan:"))
	assert.Contains(t, p.Screenplay, "INT./EXT. LOCATION - TIME")
}
