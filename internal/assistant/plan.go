package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/llm"
)

// Plan is a multi-step project outline produced by GeneratePlan.
type Plan struct {
	Title        string   `json:"title"`
	Overview     string   `json:"overview"`
	Steps        []Step   `json:"steps"`
	Technologies []string `json:"technologies"`
}

// Step is one plan step.
type Step struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	EstimatedTime string     `json:"estimatedTime"`
	CodeFiles     []CodeFile `json:"codeFiles"`
}

// CodeFile names a file a step produces.
type CodeFile struct {
	Filename string `json:"filename"`
	Language string `json:"language"`
	Purpose  string `json:"purpose"`
}

// PlanResult is the {plan, error} shape returned by GeneratePlan.
type PlanResult struct {
	Plan  *Plan   `json:"plan"`
	Error *string `json:"error"`
}

var (
	errNoJSON  = errors.New("Could not parse the response as JSON")
	errBadJSON = errors.New("Failed to parse the AI response as JSON")
)

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

const planPrompt = `Create a detailed project plan for the following project description:

%s

Format your response as a JSON object with the following structure:
{
  "title": "Project Title",
  "overview": "Brief overview of the project",
  "steps": [
    {
      "id": 1,
      "name": "Step name",
      "description": "Detailed description of the step",
      "estimatedTime": "Estimated time to complete this step",
      "codeFiles": [
        {
          "filename": "example.js",
          "language": "javascript",
          "purpose": "Brief description of what this file does"
        }
      ]
    },
    ...
  ],
  "technologies": ["List", "of", "technologies", "to", "use"]
}

Make sure to include all necessary steps to complete the project from start to finish. Be comprehensive and detailed in your planning.`

// GeneratePlan asks for a JSON project plan and parses the outermost object
// found in the reply.
func (a *Assistant) GeneratePlan(ctx context.Context, description string) PlanResult {
	r := a.complete(ctx, llm.Prompt(fmt.Sprintf(planPrompt, description)), "plan")
	if r.Error != nil {
		return PlanResult{Error: r.Error}
	}
	plan, err := ParsePlan(r.Text())
	if err != nil {
		a.log.Warn("unparseable plan", zap.Error(err))
		msg := err.Error()
		return PlanResult{Error: &msg}
	}
	return PlanResult{Plan: plan}
}

// ParsePlan extracts a plan from free-form model output.
func ParsePlan(content string) (*Plan, error) {
	match := jsonObject.FindString(content)
	if match == "" {
		return nil, errNoJSON
	}
	var plan Plan
	if err := json.Unmarshal([]byte(match), &plan); err != nil {
		return nil, errBadJSON
	}
	return &plan, nil
}

func codePrompt(plan *Plan, step Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate code for the following step in my project:\n\n")
	fmt.Fprintf(&b, "Project: %s\n", plan.Title)
	fmt.Fprintf(&b, "Technologies: %s\n\n", strings.Join(plan.Technologies, ", "))
	fmt.Fprintf(&b, "Step %d: %s\n", step.ID, step.Name)
	fmt.Fprintf(&b, "Description: %s\n\n", step.Description)
	b.WriteString(`Please provide complete, working code with comments explaining key parts.
If this involves multiple files, clearly indicate the file name before each code block.
Format your response with proper markdown code blocks using triple backticks and language identifiers.
For example: ` + "```html, ```css, ```javascript" + `

Make sure the code is fully functional, well-structured, and follows best practices.
Include detailed comments to explain complex parts of the code.

For HTML, CSS, and JavaScript code, please provide separate code blocks for each language type.
For example:

` + "```html\n<!-- HTML code here -->\n```\n\n```css\n/* CSS code here */\n```\n\n```javascript\n// JavaScript code here\n```\n")
	return b.String()
}
