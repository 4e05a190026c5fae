package releases

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/harborcd/harborcd/internal/storage"
)

const (
	prefix = "release:"

	prefixByID      = prefix + "id:"
	prefixByService = prefix + "service:"
	prefixByVersion = prefix + "version:"
)

type releaseModel struct {
	storage.BaseEntity

	// References
	ServiceID uuid.UUID `json:"service_id"`

	// Release Details
	Version   string `json:"version"`
	Notes     string `json:"notes,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`

	// Status
	Status     Status               `json:"status"`
	Promotions map[string]time.Time `json:"promotions,omitempty"` // environment id -> promotion time

	// Metadata
	CreatedBy uuid.UUID `json:"created_by"`
}

func newReleaseModel(draft *ReleaseDraft) *releaseModel {
	if draft == nil {
		return nil
	}

	return &releaseModel{
		BaseEntity: storage.NewBaseEntity(),
		ServiceID:  draft.ServiceID,
		Version:    draft.Version,
		Notes:      draft.Notes,
		GitCommit:  draft.GitCommit,
		Status:     StatusDraft,
		CreatedBy:  draft.CreatedBy,
	}
}

func newRelease(model *releaseModel) *Release {
	if model == nil {
		return nil
	}

	var promotions map[uuid.UUID]time.Time
	if len(model.Promotions) > 0 {
		promotions = make(map[uuid.UUID]time.Time, len(model.Promotions))
		for env, at := range model.Promotions {
			id, err := uuid.Parse(env)
			if err != nil {
				continue
			}
			promotions[id] = at
		}
	}

	return &Release{
		ReleaseDraft: ReleaseDraft{
			ServiceID: model.ServiceID,
			Version:   model.Version,
			Notes:     model.Notes,
			GitCommit: model.GitCommit,
			CreatedBy: model.CreatedBy,
		},
		Status:     model.Status,
		Promotions: promotions,
		ID:         model.ID,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func newReleaseUpdateModel(old *releaseModel, release *Release) *releaseModel {
	updated := newReleaseModel(&release.ReleaseDraft)
	updated.ID = old.ID
	updated.CreatedAt = old.CreatedAt
	updated.UpdatedAt = time.Now()
	updated.Status = release.Status

	if len(release.Promotions) > 0 {
		updated.Promotions = make(map[string]time.Time, len(release.Promotions))
		for env, at := range release.Promotions {
			updated.Promotions[env.String()] = at
		}
	}

	return updated
}

func (m *releaseModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *releaseModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *releaseModel) StorageKey() string {
	return prefixByID + m.ID.String()
}

func (m *releaseModel) StorageIndexes() []string {
	return []string{
		// `release:version:<service_id>:<version>` enforces per-service version uniqueness
		prefixByVersion + m.ServiceID.String() + ":" + m.Version,
		// `release:service:<service_id>:<unix_nano>` for chronological listing
		prefixByService + m.ServiceID.String() + ":" + strconv.FormatInt(m.CreatedAt.UnixNano(), 10),
	}
}
