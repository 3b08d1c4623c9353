package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"smartplanr/model"
)

// dueDateLayout renders due dates without a time of day.
const dueDateLayout = "Jan 2, 2006"

const promptTemplate = `You are a study coach. Build an optimal daily schedule so the user
finishes these tasks before they are due.

- Return the schedule as Markdown bullet lines, not a table.
- Use one bullet per time block.
- After the list, add a short rationale.

Tasks:
%s`

// Planner asks a text generator for a schedule covering the incomplete
// tasks of the chosen categories. The fallback model is tried exactly once
// when the primary model fails.
type Planner struct {
	gen      TextGenerator
	primary  string
	fallback string
	loc      *time.Location
	logger   *log.Logger
}

func NewPlanner(gen TextGenerator, primary, fallback string, loc *time.Location, logger *log.Logger) *Planner {
	if loc == nil {
		loc = time.Local
	}
	return &Planner{gen: gen, primary: primary, fallback: fallback, loc: loc, logger: logger}
}

// CategoryKey is the form used to match chosen categories against tasks.
func CategoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// EligibleTasks keeps the incomplete tasks whose category is among chosen,
// comparing categories case- and whitespace-insensitively.
func EligibleTasks(chosen []string, tasks []model.Task) []model.Task {
	keys := make(map[string]bool, len(chosen))
	for _, c := range chosen {
		keys[CategoryKey(c)] = true
	}
	var out []model.Task
	for _, t := range tasks {
		if !t.IsDone && keys[CategoryKey(t.Category)] {
			out = append(out, t)
		}
	}
	return out
}

// RenderTaskLine renders one task as a Markdown checkbox bullet.
func RenderTaskLine(t model.Task, loc *time.Location) string {
	return fmt.Sprintf("- [ ] %s (due %s)", t.Title, t.Due().In(loc).Format(dueDateLayout))
}

// BuildPrompt embeds the rendered task lines in the schedule instructions.
func BuildPrompt(tasks []model.Task, loc *time.Location) string {
	lines := make([]string, len(tasks))
	for i, t := range tasks {
		lines[i] = RenderTaskLine(t, loc)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(lines, "\n"))
}

// Prompt builds the prompt for a plan request, or fails with
// ErrNoEligibleTasks when nothing qualifies.
func (p *Planner) Prompt(chosen []string, tasks []model.Task) (string, error) {
	todo := EligibleTasks(chosen, tasks)
	if len(todo) == 0 {
		return "", ErrNoEligibleTasks
	}
	return BuildPrompt(todo, p.loc), nil
}

// Generate runs prompt against the primary model and, if that fails for
// any reason, once against the fallback model. It returns the markdown and
// the model that produced it. When both fail the fallback's error is returned.
func (p *Planner) Generate(ctx context.Context, prompt string) (string, string, error) {
	text, err := p.gen.Generate(ctx, p.primary, prompt)
	if err == nil {
		return text, p.primary, nil
	}
	p.logger.Warn("primary model failed, trying fallback", "model", p.primary, "fallback", p.fallback, "err", err)
	if ctx.Err() != nil {
		return "", "", ctx.Err()
	}

	text, err = p.gen.Generate(ctx, p.fallback, prompt)
	if err != nil {
		return "", "", err
	}
	return text, p.fallback, nil
}

// MakePlan filters, prompts and generates in one call.
func (p *Planner) MakePlan(ctx context.Context, chosen []string, tasks []model.Task) (string, error) {
	prompt, err := p.Prompt(chosen, tasks)
	if err != nil {
		return "", err
	}
	text, _, err := p.Generate(ctx, prompt)
	return text, err
}
