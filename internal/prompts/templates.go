// internal/prompts/templates.go
package prompts

import (
	"fmt"

	"github.com/Corphon/CoffeeWithCinema/internal/models"
)

const ScreenplayTemplate = `You are a professional screenwriter. Based on the following story idea, write a detailed screenplay with proper formatting including scene headings, action lines, and dialogue.

Story Idea: %s

Write a complete screenplay with:
- Scene headings (INT./EXT. LOCATION - TIME)
- Action descriptions
- Character dialogue
- Scene transitions

Screenplay:`

const CharactersTemplate = `You are a character development expert. Based on the following story, create detailed character profiles.

Story: %s

For each main character, provide:
- Name
- Age and Background
- Physical Description
- Personality Traits
- Character Arc
- Motivations
- Relationships

Character Profiles:`

const SoundDesignTemplate = `You are a sound designer and composer. Based on the screenplay, create a detailed sound design and music plan for each scene.

Storyline: %s

For each scene, describe:
- Background music style and mood
- Sound effects needed
- Ambient sounds
- Dialogue treatment
- Music cues and transitions

Sound Design Plan:`

// Token budgets per stage.
const (
	ScreenplayMaxTokens  = 3000
	CharactersMaxTokens  = 2000
	SoundDesignMaxTokens = 2000
)

// DemoStory is the canned idea behind the "Load demo story" button.
const DemoStory = "A young detective in 1940s noir Los Angeles discovers a conspiracy that ties " +
	"the city’s elite to a string of disappearances. As he digs deeper, he must choose " +
	"between exposing the truth and protecting the woman he loves."

// Stage is one prompt of a generation run.
type Stage struct {
	Section   models.Section
	Prompt    string
	MaxTokens int
}

// PromptSet holds the three prompts built from one story idea.
type PromptSet struct {
	Screenplay  string
	Characters  string
	SoundDesign string
}

// BuildPrompts embeds the idea verbatim into each template.
func BuildPrompts(idea string) PromptSet {
	return PromptSet{
		Screenplay:  fmt.Sprintf(ScreenplayTemplate, idea),
		Characters:  fmt.Sprintf(CharactersTemplate, idea),
		SoundDesign: fmt.Sprintf(SoundDesignTemplate, idea),
	}
}

// Stages returns the prompts in generation order with their budgets.
func (p PromptSet) Stages() []Stage {
	return []Stage{
		{Section: models.SectionScreenplay, Prompt: p.Screenplay, MaxTokens: ScreenplayMaxTokens},
		{Section: models.SectionCharacters, Prompt: p.Characters, MaxTokens: CharactersMaxTokens},
		{Section: models.SectionSoundDesign, Prompt: p.SoundDesign, MaxTokens: SoundDesignMaxTokens},
	}
}
