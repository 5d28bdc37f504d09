// Package workflow checks the structure of referral workflow trees.
//
// A workflow is an ordered sequence of steps. Decision steps own labelled
// branches, and each branch is itself a sequence validated under the path
// "<parent> > <label>". Validation never fails in the error sense: every
// defect is reported as a message in the returned result.
package workflow

import (
	"fmt"

	"inpatient-hub/backend/pkg/models"
)

// RootPath names the top-level sequence in error messages
const RootPath = "Main workflow"

type validator struct {
	errors  []string
	visited map[*models.Step]struct{}
}

// Validate reports whether every decision path in steps ends on a terminal
// step, along with every defect found in discovery order.
func Validate(steps []models.Step) models.ValidationResult {
	v := &validator{
		errors:  []string{},
		visited: map[*models.Step]struct{}{},
	}
	valid := v.checkPath(steps, RootPath)
	return models.ValidationResult{
		Valid:  valid,
		Errors: v.errors,
	}
}

func (v *validator) checkPath(steps []models.Step, path string) bool {
	if len(steps) == 0 {
		v.addError("%s has no steps", path)
		return false
	}

	valid := true
	lastIdx := len(steps) - 1
	last := &steps[lastIdx]

	switch {
	case last.IsDecision():
		// every branch of the tail decision is checked, errors accumulate
		if !v.hasBranches(last, path) || !v.enter(last, path) {
			valid = false
			break
		}
		for _, b := range last.Branches {
			if !v.checkPath(b.Steps, branchPath(path, b.Label)) {
				valid = false
			}
		}
	case !last.Type.IsTerminal() && containsDecision(steps[:lastIdx]):
		v.addError("%s: Branch must end with an endpoint or completion step", path)
		valid = false
	}

	// interior decisions stop at the first failing branch
	for i := range steps[:lastIdx] {
		step := &steps[i]
		if !step.IsDecision() {
			continue
		}
		if !v.hasBranches(step, path) || !v.enter(step, path) {
			valid = false
			continue
		}
		for _, b := range step.Branches {
			if !v.checkPath(b.Steps, branchPath(path, b.Label)) {
				return false
			}
		}
	}

	return valid
}

func (v *validator) hasBranches(step *models.Step, path string) bool {
	if len(step.Branches) > 0 {
		return true
	}
	v.addError("%s: Decision \"%s\" has no branches defined", path, step.Title)
	return false
}

// enter marks a decision as visited. Step identity is the address of the
// slice element, so aliased sub-sequences are caught before they recurse.
func (v *validator) enter(step *models.Step, path string) bool {
	if _, ok := v.visited[step]; ok {
		v.addError(
			"%s: Decision \"%s\" is reachable more than once; workflows must be trees",
			path, step.Title,
		)
		return false
	}
	v.visited[step] = struct{}{}
	return true
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func branchPath(parent, label string) string {
	return parent + " > " + label
}

func containsDecision(steps []models.Step) bool {
	for i := range steps {
		if steps[i].IsDecision() {
			return true
		}
	}
	return false
}
