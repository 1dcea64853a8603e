package api

import (
	"raffle/internal/audit"
	"raffle/internal/drawconfig"
	"raffle/internal/raffle"
	apperrors "raffle/pkg/errors"
)

// DrawRequest runs one draw over an inline population.
type DrawRequest struct {
	Config     drawconfig.Spec  `json:"config"`
	Population []map[string]any `json:"population"`
	Winners    int              `json:"winners"`
	Seed       *int64           `json:"seed"`
}

// DrawResponse is the draw result. AuditError is set when winners were drawn
// but the audit record could not be written; Audited is then false.
type DrawResponse struct {
	*raffle.Result
	AuditError *apperrors.ErrorResponse `json:"audit_error,omitempty"`
}

type AuditListResponse struct {
	Records []audit.Record `json:"records"`
	Count   int            `json:"count"`
}

// VerifyRequest checks a candidate id list against a recorded snapshot hash.
type VerifyRequest struct {
	SnapshotHash string   `json:"snapshot_hash" binding:"required"`
	CandidateIDs []string `json:"candidate_ids"`
}

type VerifyResponse struct {
	Valid    bool   `json:"valid"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}
