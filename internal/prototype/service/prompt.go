package service

import (
	"strings"

	"vibesnap/internal/prototype/model"
)

// BuildPrompt renders the prototype-generation prompt. Blank fields get
// bracketed placeholders so the prompt is always complete.
func (s *PrototypeService) BuildPrompt(req model.PromptRequest) string {
	or := func(v, fallback string) string {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		return fallback
	}

	lines := []string{
		"You are generating a rapid validation prototype.",
		"",
		"Output a single self-contained HTML file that includes:",
		"- Inline CSS in a <style> tag",
		"- Inline JavaScript in a <script> tag",
		"- No external libraries",
		"- No external assets",
		"- Works by opening the HTML file directly",
		"",
		"App concept: " + or(req.Idea, "[describe the app]"),
		"Target user: " + or(req.Audience, "[target user]"),
		"Primary goal: " + or(req.Goal, "[primary goal]"),
		"Key screens: " + or(req.Screens, "[key screens]"),
		"Must-have interaction: " + or(req.Must, "[must-have interaction]"),
		"Data to store: " + or(req.Data, "[data to store]"),
		"",
		"Requirements:",
		"- Style: " + or(req.Style, "Clean, modern, dark-mode friendly"),
		"- Make it feel real: include realistic empty states, example data, and at least one meaningful interaction",
		"- Keep it simple but functional",
		"- Include a tiny 'prototype' label somewhere in the UI",
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		lines = append(lines, "", "Extra notes: "+notes)
	}
	lines = append(lines,
		"",
		"IMPORTANT:",
		"Output ONLY the full HTML code (single file). Do not include explanations.",
	)

	return strings.Join(lines, "\n")
}
