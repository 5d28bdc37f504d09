package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inpatient-hub/backend/pkg/models"
)

func step(t models.StepType, title string) models.Step {
	return models.Step{ID: title, Type: t, Title: title}
}

func decision(title string, branches ...models.Branch) models.Step {
	return models.Step{
		ID:       title,
		Type:     models.StepDecisionYesNo,
		Title:    title,
		Branches: branches,
	}
}

func branch(label string, steps ...models.Step) models.Branch {
	return models.Branch{Label: label, Steps: steps}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		steps  []models.Step
		valid  bool
		errors []string
	}{
		{
			name:   "empty root",
			steps:  nil,
			valid:  false,
			errors: []string{"Main workflow has no steps"},
		},
		{
			name:   "single non-terminal step",
			steps:  []models.Step{step(models.StepCriteria, "Criteria")},
			valid:  true,
			errors: []string{},
		},
		{
			name: "linear workflow without decisions",
			steps: []models.Step{
				step(models.StepCriteria, "Criteria"),
				step(models.StepConsent, "Consent"),
				step(models.StepForms, "Forms"),
				step(models.StepSubmission, "Submit"),
			},
			valid:  true,
			errors: []string{},
		},
		{
			name:  "decision without branches",
			steps: []models.Step{decision("Check eligibility")},
			valid: false,
			errors: []string{
				`Main workflow: Decision "Check eligibility" has no branches defined`,
			},
		},
		{
			name: "branch with no steps",
			steps: []models.Step{
				decision("Eligible?",
					branch("Yes", step(models.StepEndpoint, "Done")),
					branch("No"),
				),
			},
			valid:  false,
			errors: []string{"Main workflow > No has no steps"},
		},
		{
			name: "every branch terminates",
			steps: []models.Step{
				step(models.StepCriteria, "Criteria"),
				decision("Eligible?",
					branch("Yes",
						step(models.StepConsent, "Consent"),
						models.Step{
							Type:  models.StepDecisionMulti,
							Title: "Which team?",
							Branches: []models.Branch{
								branch("Physio",
									step(models.StepForms, "Forms"),
									step(models.StepGDPR, "GDPR"),
								),
								branch("OT", step(models.StepReminder, "Remind")),
							},
						},
					),
					branch("No", step(models.StepCasenote, "Note")),
				),
			},
			valid:  true,
			errors: []string{},
		},
		{
			name: "content after decision must terminate",
			steps: []models.Step{
				step(models.StepCriteria, "Criteria"),
				decision("Eligible?", branch("Yes", step(models.StepEndpoint, "Done"))),
				step(models.StepForms, "Forms"),
			},
			valid: false,
			errors: []string{
				"Main workflow: Branch must end with an endpoint or completion step",
			},
		},
		{
			name: "terminal step after decision",
			steps: []models.Step{
				decision("Eligible?", branch("Yes", step(models.StepEndpoint, "Done"))),
				step(models.StepCasenote, "Note"),
			},
			valid:  true,
			errors: []string{},
		},
		{
			name: "branch without decisions may end anywhere",
			steps: []models.Step{
				decision("Eligible?", branch("Yes", step(models.StepForms, "Forms"))),
			},
			valid:  true,
			errors: []string{},
		},
		{
			name: "tail decision collects every failing branch",
			steps: []models.Step{
				decision("Eligible?",
					branch("Yes"),
					branch("No"),
					branch("Maybe", decision("Ask senior")),
				),
			},
			valid: false,
			errors: []string{
				"Main workflow > Yes has no steps",
				"Main workflow > No has no steps",
				`Main workflow > Maybe: Decision "Ask senior" has no branches defined`,
			},
		},
		{
			name: "interior decision stops at first failing branch",
			steps: []models.Step{
				decision("Eligible?",
					branch("Yes"),
					branch("No"),
				),
				step(models.StepEndpoint, "Done"),
			},
			valid:  false,
			errors: []string{"Main workflow > Yes has no steps"},
		},
		{
			name: "interior decisions without branches are all reported",
			steps: []models.Step{
				decision("First"),
				decision("Second"),
				step(models.StepEndpoint, "Done"),
			},
			valid: false,
			errors: []string{
				`Main workflow: Decision "First" has no branches defined`,
				`Main workflow: Decision "Second" has no branches defined`,
			},
		},
		{
			name: "nested failure names the full path",
			steps: []models.Step{
				decision("Eligible?",
					branch("Yes",
						decision("Urgent?",
							branch("Yes", step(models.StepEndpoint, "Bleep")),
							branch("No", decision("Consented?"), step(models.StepForms, "Forms")),
						),
					),
					branch("No", step(models.StepEndpoint, "Done")),
				),
			},
			valid: false,
			errors: []string{
				"Main workflow > Yes > No: Branch must end with an endpoint or completion step",
				`Main workflow > Yes > No: Decision "Consented?" has no branches defined`,
			},
		},
		{
			name: "unknown step type is ordinary content",
			steps: []models.Step{
				decision("Eligible?", branch("Yes", step(models.StepEndpoint, "Done"))),
				step(models.StepType("handover"), "Handover"),
			},
			valid: false,
			errors: []string{
				"Main workflow: Branch must end with an endpoint or completion step",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.steps)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.errors, res.Errors)
		})
	}
}

func TestValidateTerminalTypes(t *testing.T) {
	for _, st := range []models.StepType{
		models.StepEndpoint, models.StepGDPR, models.StepReminder, models.StepCasenote,
	} {
		res := Validate([]models.Step{
			step(models.StepCriteria, "Criteria"),
			decision("Eligible?", branch("Yes", step(models.StepEndpoint, "Done"))),
			step(st, "End"),
		})
		assert.True(t, res.Valid, "%s should terminate a path", st)
	}
}

func TestValidateIdempotent(t *testing.T) {
	steps := []models.Step{
		decision("Eligible?",
			branch("Yes", step(models.StepEndpoint, "Done")),
			branch("No"),
		),
		step(models.StepForms, "Forms"),
	}

	first := Validate(steps)
	second := Validate(steps)
	assert.Equal(t, first, second)
	assert.False(t, first.Valid)
}

func TestValidateCycle(t *testing.T) {
	t.Run("self referencing branch", func(t *testing.T) {
		root := make([]models.Step, 1)
		root[0] = decision("Loop", branch("Again", root...))
		root[0].Branches[0].Steps = root

		res := Validate(root)
		require.False(t, res.Valid)
		assert.Equal(t, []string{
			`Main workflow > Again: Decision "Loop" is reachable more than once; workflows must be trees`,
		}, res.Errors)
	})

	t.Run("shared sub-sequence", func(t *testing.T) {
		shared := []models.Step{
			decision("Inner", branch("Yes", step(models.StepEndpoint, "Done"))),
		}
		root := []models.Step{
			decision("Outer",
				branch("A", shared...),
				branch("B", shared...),
			),
		}
		root[0].Branches[0].Steps = shared
		root[0].Branches[1].Steps = shared

		res := Validate(root)
		assert.False(t, res.Valid)
		assert.Equal(t, []string{
			`Main workflow > B: Decision "Inner" is reachable more than once; workflows must be trees`,
		}, res.Errors)
	})
}
