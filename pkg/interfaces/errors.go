package interfaces

import "errors"

// Shared sentinel errors for conditions that are not worth a full
// types.CoordinatorError at the storage layer; callers that need a Kind
// wrap these with types.WrapError at the boundary into the coordinator.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrAlreadyClaimed  = errors.New("room already has a doctor assigned")
	ErrNotClaimant     = errors.New("caller is not the current claimant")
	ErrMessageNotFound = errors.New("message not found")
)
