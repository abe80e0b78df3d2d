package dto

import "github.com/rahmanfadhil/deadline-radar/internal/models"

// CreateRunRequest captures the optional POST /runs payload. The access
// token arrives on the Authorization header, never in the body.
type CreateRunRequest struct {
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

// RunResponse is returned after enqueueing a run.
type RunResponse struct {
	ID       string           `json:"id"`
	Status   models.RunStatus `json:"status"`
	Timezone string           `json:"timezone"`
}
