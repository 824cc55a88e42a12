package gemini

import (
	"fmt"
	"strings"

	"standupbot/internal/standup"
)

const instructions = `---

OUTPUT REQUIREMENTS
You MUST follow the format below EXACTLY.
Do NOT add extra sections.
Do NOT add commentary outside the sections.
Do NOT use vague or motivational language.

---

## 🎯 Today's Focus Areas
- Group work by FEATURE, MODULE, or INITIATIVE (not by person).
- Under each group, list the person name and the exact task or outcome they are working on.
- If an update is vague, rewrite it into a concrete task without inventing facts.

## 🛠️ Technical Updates
- Include ONLY concrete technical details: code changes, APIs, infra, architecture, bugs, refactors, tooling.
- If there are NO meaningful technical updates, OMIT this section entirely.

## ⚠️ Blockers (Immediate Attention Required)
- List EVERY blocker explicitly as: **Name**: blocker description
- Highlight dependencies on other team members or external systems.
- If NO blockers exist, write exactly:
  ✅ No blockers reported

## 🚨 Risks & Dependencies
Identify REAL risks based ONLY on the provided data. DO NOT speculate beyond the responses.

## ❌ Missing Responses
%s

---

STRICT RULES:
- ONLY list names in "Missing Responses" if they are explicitly provided above.
- DO NOT invent work, blockers, or risks.
- Members marked NO UPDATE had nothing to report; do not list them as missing.
- Be concise, factual, and execution-focused.
- Use Discord markdown ONLY (**bold**, - bullets).
`

// BuildPrompt renders the model prompt for a closed day.
func BuildPrompt(in standup.SummaryInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an experienced Engineering Manager preparing a DAILY STANDUP REPORT for leadership.\n")
	fmt.Fprintf(&b, "Below are raw standup responses for %s. Transform them into a clear, structured, actionable report.\n\n", in.Day.Key)
	b.WriteString("INPUT:\n")

	var blocked []string
	for _, r := range in.Responses {
		if r.NoUpdate {
			fmt.Fprintf(&b, "\n**%s** (NO UPDATE)\n", r.Username)
			continue
		}
		mood := ""
		if r.Answers.Mood != nil {
			mood = fmt.Sprintf(" [Mood: %d/5]", *r.Answers.Mood)
		}
		fmt.Fprintf(&b, "\n**%s**%s\n", r.Username, mood)
		fmt.Fprintf(&b, "- Yesterday: %s\n", orDefault(r.Answers.Yesterday, "N/A"))
		fmt.Fprintf(&b, "- Today: %s\n", orDefault(r.Answers.Today, "N/A"))
		fmt.Fprintf(&b, "- Blockers: %s\n", orDefault(r.Answers.Blockers, "None"))
		if r.Answers.HasBlocker() {
			blocked = append(blocked, fmt.Sprintf("- %s: %s", r.Username, r.Answers.Blockers))
		}
	}

	b.WriteString("\n### BLOCKS:\n")
	if len(blocked) == 0 {
		b.WriteString("- None reported\n")
	} else {
		b.WriteString(strings.Join(blocked, "\n"))
		b.WriteString("\n")
	}

	missing := make([]string, 0, len(in.NonResponders))
	for _, name := range in.NonResponders {
		missing = append(missing, "- "+name)
	}
	b.WriteString("\n### NON-RESPONDERS:\n")
	if len(missing) == 0 {
		b.WriteString("- None\n\n")
	} else {
		b.WriteString(strings.Join(missing, "\n"))
		b.WriteString("\n\n")
	}

	section := "✅ All registered users responded"
	if len(missing) > 0 {
		section = strings.Join(missing, "\n")
	}
	fmt.Fprintf(&b, instructions, section)

	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
