// Package phase2 implements the group-to-cleaner assigner: compatibility
// filtering plus scored selection, with an iterative drop-hardest-task
// retry policy.
package phase2

import (
	"fmt"

	"cleanopt/pkg/domain"
)

// RejectReason is a single compatibility-check failure for one task against
// one cleaner.
type RejectReason struct {
	TaskID int
	Code   string
}

// checkCompatibility runs the full compatibility matrix for one
// task against one cleaner, returning every violated rule.
func checkCompatibility(task domain.Task, cleaner domain.Cleaner) []RejectReason {
	var reasons []RejectReason

	if task.Premium && cleaner.Role != domain.RolePremium {
		reasons = append(reasons, RejectReason{TaskID: task.ID, Code: "ROLE_MISMATCH_PREMIUM_REQUIRED"})
	}
	if task.Straordinaria && !cleaner.CanDoStraordinaria {
		reasons = append(reasons, RejectReason{TaskID: task.ID, Code: "CANNOT_DO_STRAORDINARIA"})
	}

	apt := task.NormalizedApartmentType()
	if !cleaner.AcceptsApartmentType(apt) {
		reasons = append(reasons, RejectReason{
			TaskID: task.ID,
			Code:   fmt.Sprintf("CONTRACT_APT_MISMATCH_%s_vs_%s", cleaner.Contract, apt),
		})
	}

	return reasons
}

// groupCompatible reports whether cleaner is compatible with every task in
// the group, aggregating violations across all member tasks.
func groupCompatible(tasks []domain.Task, cleaner domain.Cleaner) (bool, []RejectReason) {
	var all []RejectReason
	for _, t := range tasks {
		all = append(all, checkCompatibility(t, cleaner)...)
	}
	return len(all) == 0, all
}
