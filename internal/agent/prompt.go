package agent

import (
	"fmt"
	"strings"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// Generation knobs per role. Designers run warm; the structured choice
// set runs cooler so the action/risk fields stay on contract.
const (
	questMaxTokens     = 400
	eventMaxTokens     = 500
	choiceMaxTokens    = 300
	narrationMaxTokens = 350

	creativeTemperature   = 0.85
	structuredTemperature = 0.6
)

func questPrompt(b protocol.QuestBrief) string {
	var sb strings.Builder
	sb.WriteString("# Task\n")
	sb.WriteString("Design the framing quest for an interactive creature-taming adventure.\n\n")
	writeStyle(&sb, b.Style, b.StyleNotes)
	fmt.Fprintf(&sb, "# Team\n%s\n\n", b.TeamSummary)
	writeLore(&sb, b.LoreHints)
	sb.WriteString("# Output\n")
	sb.WriteString("Return only a JSON object, no prose around it:\n")
	sb.WriteString(`{"title": string, "objective": string, "difficulty": "easy"|"normal"|"hard", "targetStepCount": integer between 3 and 12}`)
	sb.WriteString("\n")
	return sb.String()
}

func eventPrompt(b protocol.EventBrief) string {
	var sb strings.Builder
	sb.WriteString("# Task\n")
	fmt.Fprintf(&sb, "Design step %d of the quest %q (%s).\n", b.Step, b.Quest.Title, b.Quest.Objective)
	if b.EventType != "" {
		fmt.Fprintf(&sb, "The party voted for a %s event; honor that unless it breaks the story.\n", b.EventType)
	}
	sb.WriteString("\n")
	writeStyle(&sb, "", b.StyleNotes)
	fmt.Fprintf(&sb, "# Team\n%s\n\n", b.TeamSummary)
	writeLore(&sb, b.LoreHints)
	sb.WriteString("# Output\n")
	sb.WriteString("Return only a JSON object, no prose around it:\n")
	sb.WriteString(`{"title": string, "description": string, "eventType": "battle"|"encounter"|"exploration", "enemyName": string, "enemyPower": number, "enemyTypes": [string], "difficulty": "easy"|"normal"|"hard"}`)
	sb.WriteString("\nOmit enemy fields for events without an enemy.\n")
	return sb.String()
}

func choicePrompt(b protocol.ChoiceBrief) string {
	var sb strings.Builder
	sb.WriteString("# Task\n")
	fmt.Fprintf(&sb, "Offer the player exactly three choices for this event:\n%s: %s\n\n", b.Event.Title, b.Event.Description)
	fmt.Fprintf(&sb, "# Team\n%s\n\n", b.TeamSummary)
	sb.WriteString("# Rules\n")
	sb.WriteString("- Choice 1 is the safe route, choice 2 moderate, choice 3 risky.\n")
	sb.WriteString("- Allowed actions: battle, capture, flee, explore.\n")
	sb.WriteString("- battle and capture are only allowed when the event has an enemy.\n\n")
	sb.WriteString("# Output\n")
	sb.WriteString("Return only a JSON object, no prose around it:\n")
	sb.WriteString(`{"choices": [{"label": string, "action": string, "risk": "safe"|"moderate"|"risky"}]}`)
	sb.WriteString("\n")
	return sb.String()
}

func narrationPrompt(b protocol.NarrationBrief) string {
	var sb strings.Builder
	sb.WriteString("# Task\n")
	switch {
	case b.Outcome != nil:
		sb.WriteString("Narrate the outcome of the player's last action.\n")
		fmt.Fprintf(&sb, "Action: %s, success: %t, damage dealt: %.1f, score change: %+d.\n\n",
			b.Outcome.Action, b.Outcome.Success, b.Outcome.DamageDealt, b.Outcome.ScoreDelta)
	case b.Event != nil:
		sb.WriteString("Narrate the scene the player is walking into.\n")
		fmt.Fprintf(&sb, "Event: %s: %s\n\n", b.Event.Title, b.Event.Description)
	}
	if b.Event != nil && b.Outcome != nil {
		fmt.Fprintf(&sb, "# Scene\n%s: %s\n\n", b.Event.Title, b.Event.Description)
	}
	writeStyle(&sb, "", b.StyleNotes)
	if b.TeamSummary != "" {
		fmt.Fprintf(&sb, "# Team\n%s\n\n", b.TeamSummary)
	}
	sb.WriteString("# Rules\n")
	sb.WriteString("- Two to four sentences, second person, present tense.\n")
	sb.WriteString("- Never state numbers or mechanics; render their effect.\n\n")
	sb.WriteString("# Output\n")
	sb.WriteString("Return only a JSON object, no prose around it:\n")
	sb.WriteString(`{"narration": string}`)
	sb.WriteString("\n")
	return sb.String()
}

func writeStyle(sb *strings.Builder, style, notes string) {
	if style == "" && notes == "" {
		return
	}
	sb.WriteString("# Style\n")
	if style != "" {
		fmt.Fprintf(sb, "%s\n", style)
	}
	if notes != "" {
		fmt.Fprintf(sb, "%s\n", notes)
	}
	sb.WriteString("\n")
}

func writeLore(sb *strings.Builder, hints []string) {
	if len(hints) == 0 {
		return
	}
	sb.WriteString("# Lore\n")
	for _, h := range hints {
		fmt.Fprintf(sb, "- %s\n", h)
	}
	sb.WriteString("\n")
}
