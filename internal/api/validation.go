package api

import (
	"fmt"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

func validateEvent(req EventRequest) error {
	if req.Type == "" {
		return fmt.Errorf("type is required")
	}
	for _, known := range domain.KnownMessageTypes() {
		if req.Type == string(known) {
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", req.Type)
}

func validateTestFire(req TestFireRequest) error {
	if req.UserID <= 0 {
		return fmt.Errorf("user_id must be positive")
	}
	return nil
}

func validateJobState(state string) (domain.JobState, error) {
	s := domain.JobState(state)
	if !s.Valid() {
		return "", fmt.Errorf("unknown job state %q", state)
	}
	return s, nil
}
