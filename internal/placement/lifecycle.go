package placement

import (
	"fmt"
	"time"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"
)

const RuleInvalidTransition = "INVALID_TRANSITION"

// Withdrawn and rejected have no outgoing transitions.
var applicationTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationPending:    {models.ApplicationSuccessful, models.ApplicationRejected, models.ApplicationWithdrawn},
	models.ApplicationSuccessful: {models.ApplicationWithdrawn},
}

func canTransition(from, to models.ApplicationStatus) bool {
	for _, next := range applicationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition moves app to status `to`, stamping UpdatedAt. Leaving
// successful clears the placement flag so placementAccepted implies successful.
func transition(app *models.Application, to models.ApplicationStatus, now time.Time) error {
	if !canTransition(app.Status, to) {
		return apperrors.NewInvalidStateError(RuleInvalidTransition,
			fmt.Sprintf("application cannot move from %s to %s", app.Status, to),
			fmt.Sprintf("applicationId: %s", app.ID))
	}
	app.Status = to
	app.UpdatedAt = now
	if to != models.ApplicationSuccessful {
		app.PlacementAccepted = false
	}
	return nil
}

// CanBeWithdrawn reports whether the student may request withdrawal. An
// accepted placement can only be withdrawn through staff.
func CanBeWithdrawn(app models.Application) bool {
	switch app.Status {
	case models.ApplicationPending:
		return true
	case models.ApplicationSuccessful:
		return !app.PlacementAccepted
	default:
		return false
	}
}

// isActive reports whether the application still counts against the
// student's limit. Rejected and withdrawn applications are settled.
func isActive(app models.Application) bool {
	return app.Status == models.ApplicationPending || app.Status == models.ApplicationSuccessful
}
