package models

// Machine-readable reason codes carried on error responses and audit events.
const (
	ReasonFileRequired              = "FILE_REQUIRED"
	ReasonAttachmentHashMissing     = "ATTACHMENT_HASH_MISSING"
	ReasonExternalReferenceRequired = "EXTERNAL_REFERENCE_REQUIRED"
	ReasonSnapshotTimestampRequired = "SNAPSHOT_TIMESTAMP_REQUIRED"
	ReasonAttestationRequired       = "ATTESTATION_REQUIRED"
	ReasonStructuredPayloadRequired = "STRUCTURED_PAYLOAD_REQUIRED"
	ReasonPortalRequestRequired     = "PORTAL_REQUEST_REQUIRED"
	ReasonPortalIdentityUnknown     = "PORTAL_IDENTITY_UNKNOWN"
	ReasonIdempotencyConflict       = "IDEMPOTENCY_CONFLICT"
	ReasonDataModeViolation         = "DATA_MODE_VIOLATION"
	ReasonStaleSequence             = "STALE_SEQUENCE"

	ReasonValidationFailed     = "VALIDATION_FAILED"
	ReasonIllegalTransition    = "ILLEGAL_TRANSITION"
	ReasonDraftNotEditable     = "DRAFT_NOT_EDITABLE"
	ReasonAlreadySuperseded    = "ALREADY_SUPERSEDED"
	ReasonReasonRequired       = "REASON_REQUIRED"
	ReasonHumanConfirmRequired = "HUMAN_CONFIRMATION_REQUIRED"
	ReasonCommandIDReused      = "COMMAND_ID_REUSED"
	ReasonManualQuarantine     = "MANUAL_QUARANTINE"
)
