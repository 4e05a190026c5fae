package deployments

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/harborcd/harborcd/internal/storage"
)

const (
	prefix = "deployment:"

	prefixByID      = prefix + "id:"
	prefixByRelease = prefix + "release:"
	prefixActive    = prefix + "active:"

	approvalPrefix = "approval:"

	approvalPrefixByID         = approvalPrefix + "id:"
	approvalPrefixByDeployment = approvalPrefix + "deployment:"

	rollbackPrefix = "rollback:"

	rollbackPrefixByID         = rollbackPrefix + "id:"
	rollbackPrefixByDeployment = rollbackPrefix + "deployment:"
)

// activeKey marks the single in-flight deployment of a (release, environment)
// pair. It exists only while the deployment is non-terminal.
func activeKey(releaseID, environmentID uuid.UUID) string {
	return prefixActive + releaseID.String() + ":" + environmentID.String()
}

type deploymentModel struct {
	storage.BaseEntity

	// References
	ReleaseID     uuid.UUID `json:"release_id"`
	EnvironmentID uuid.UUID `json:"environment_id"`

	// Status
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Metadata
	Requester uuid.UUID `json:"requester"`
}

func newDeploymentModel(draft *DeploymentDraft) *deploymentModel {
	if draft == nil {
		return nil
	}

	return &deploymentModel{
		BaseEntity:    storage.NewBaseEntity(),
		ReleaseID:     draft.ReleaseID,
		EnvironmentID: draft.EnvironmentID,
		Status:        StatusPending,
		Requester:     draft.Requester,
	}
}

func newDeployment(model *deploymentModel) *Deployment {
	if model == nil {
		return nil
	}

	return &Deployment{
		DeploymentDraft: DeploymentDraft{
			ReleaseID:     model.ReleaseID,
			EnvironmentID: model.EnvironmentID,
			Requester:     model.Requester,
		},
		Status:      model.Status,
		StartedAt:   model.StartedAt,
		CompletedAt: model.CompletedAt,
		ID:          model.ID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func newDeploymentUpdateModel(old *deploymentModel, deployment *Deployment) *deploymentModel {
	updated := newDeploymentModel(&deployment.DeploymentDraft)
	updated.ID = old.ID
	updated.CreatedAt = old.CreatedAt
	updated.UpdatedAt = time.Now()
	updated.Status = deployment.Status
	updated.StartedAt = deployment.StartedAt
	updated.CompletedAt = deployment.CompletedAt

	return updated
}

func (m *deploymentModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *deploymentModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *deploymentModel) StorageKey() string {
	return prefixByID + m.ID.String()
}

func (m *deploymentModel) StorageIndexes() []string {
	indexes := []string{
		// `deployment:release:<release_id>:<unix_nano>` for chronological listing
		prefixByRelease + m.ReleaseID.String() + ":" + strconv.FormatInt(m.CreatedAt.UnixNano(), 10),
	}

	// The active marker disappears once the deployment reaches a terminal
	// status, releasing the (release, environment) pair.
	if !m.Status.Terminal() {
		indexes = append(indexes, activeKey(m.ReleaseID, m.EnvironmentID))
	}

	return indexes
}

type approvalModel struct {
	storage.BaseEntity

	// References
	DeploymentID uuid.UUID `json:"deployment_id"`
	StageName    string    `json:"stage_name"`

	// Decision
	Approver  *uuid.UUID `json:"approver"`
	Decision  Decision   `json:"decision"`
	Comment   string     `json:"comment,omitempty"`
	DecidedAt *time.Time `json:"decided_at"`
}

func newApprovalModel(draft *ApprovalDraft) *approvalModel {
	if draft == nil {
		return nil
	}

	return &approvalModel{
		BaseEntity:   storage.NewBaseEntity(),
		DeploymentID: draft.DeploymentID,
		StageName:    draft.StageName,
		Decision:     DecisionPending,
	}
}

func newApproval(model *approvalModel) *Approval {
	if model == nil {
		return nil
	}

	return &Approval{
		ApprovalDraft: ApprovalDraft{
			DeploymentID: model.DeploymentID,
			StageName:    model.StageName,
		},
		Approver:  model.Approver,
		Decision:  model.Decision,
		Comment:   model.Comment,
		DecidedAt: model.DecidedAt,
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func newApprovalUpdateModel(old *approvalModel, approval *Approval) *approvalModel {
	updated := newApprovalModel(&approval.ApprovalDraft)
	updated.ID = old.ID
	updated.CreatedAt = old.CreatedAt
	updated.UpdatedAt = time.Now()
	updated.Approver = approval.Approver
	updated.Decision = approval.Decision
	updated.Comment = approval.Comment
	updated.DecidedAt = approval.DecidedAt

	return updated
}

func (m *approvalModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *approvalModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *approvalModel) StorageKey() string {
	return approvalPrefixByID + m.ID.String()
}

func (m *approvalModel) StorageIndexes() []string {
	return []string{
		// `approval:deployment:<deployment_id>:<stage>`, one gate per stage
		approvalPrefixByDeployment + m.DeploymentID.String() + ":" + m.StageName,
	}
}

type rollbackModel struct {
	storage.BaseEntity

	// References
	DeploymentID    uuid.UUID `json:"deployment_id"`
	TargetReleaseID uuid.UUID `json:"target_release_id"`

	// Status
	Status      RollbackStatus `json:"status"`
	CompletedAt *time.Time     `json:"completed_at"`

	// Metadata
	Initiator uuid.UUID `json:"initiator"`
	Reason    string    `json:"reason"`
}

func newRollbackModel(draft *RollbackDraft) *rollbackModel {
	if draft == nil {
		return nil
	}

	return &rollbackModel{
		BaseEntity:      storage.NewBaseEntity(),
		DeploymentID:    draft.DeploymentID,
		TargetReleaseID: draft.TargetReleaseID,
		Status:          RollbackInProgress,
		Initiator:       draft.Initiator,
		Reason:          draft.Reason,
	}
}

func newRollback(model *rollbackModel) *Rollback {
	if model == nil {
		return nil
	}

	return &Rollback{
		RollbackDraft: RollbackDraft{
			DeploymentID:    model.DeploymentID,
			TargetReleaseID: model.TargetReleaseID,
			Initiator:       model.Initiator,
			Reason:          model.Reason,
		},
		Status:      model.Status,
		CompletedAt: model.CompletedAt,
		ID:          model.ID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func newRollbackUpdateModel(old *rollbackModel, rollback *Rollback) *rollbackModel {
	updated := newRollbackModel(&rollback.RollbackDraft)
	updated.ID = old.ID
	updated.CreatedAt = old.CreatedAt
	updated.UpdatedAt = time.Now()
	updated.Status = rollback.Status
	updated.CompletedAt = rollback.CompletedAt

	return updated
}

func (m *rollbackModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *rollbackModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *rollbackModel) StorageKey() string {
	return rollbackPrefixByID + m.ID.String()
}

func (m *rollbackModel) StorageIndexes() []string {
	return []string{
		// `rollback:deployment:<deployment_id>:<unix_nano>` for chronological listing
		rollbackPrefixByDeployment + m.DeploymentID.String() + ":" +
			strconv.FormatInt(m.CreatedAt.UnixNano(), 10),
	}
}
