package domain

// Stage identifies one phase of the customer pipeline.
type Stage string

// Pipeline stages in order.
const (
	StageConsultation Stage = "consultation"
	StageContract     Stage = "contract"
	StageInstallation Stage = "installation"
	StageOperation    Stage = "operation"
	StageFranchise    Stage = "franchise"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageConsultation,
	StageContract,
	StageInstallation,
	StageOperation,
	StageFranchise,
}

// Shared record statuses. Not every stage uses every status.
const (
	StatusWaiting          = "waiting"
	StatusInProgress       = "in_progress"
	StatusHold             = "hold"
	StatusSignaturePending = "signature_pending"
	StatusCompleted        = "completed"
	StatusCancelled        = "cancelled"
)

// Operation statuses are derived from the operation checklist.
const (
	StatusContractPending     = "contract_pending"
	StatusInstallCertPending  = "install_cert_pending"
	StatusInstallPhotoPending = "install_photo_pending"
	StatusDriveUploadPending  = "drive_upload_pending"
)

// Franchise statuses.
const (
	StatusActive     = "active"
	StatusSuspended  = "suspended"
	StatusTerminated = "terminated"
)
