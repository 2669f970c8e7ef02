package boundary

import (
	"context"
	"time"

	"github.com/quarryhq/quarry/pkg/connector"
)

// DriveItems scopes an on-demand Google Drive run to specific folders
// and/or files instead of a full account scan.
type DriveItems struct {
	Folders []string `json:"folders,omitempty"`
	Files   []string `json:"files,omitempty"`
}

// TriggerRequest is the body of an on-demand run-trigger call. StartDate/
// EndDate accept the same "undefined"/"" sentinels pkg/connector.
// ResolveDateRange already normalizes; MaxItems and DriveItems are
// forwarded as connector-specific hints and are not interpreted here.
type TriggerRequest struct {
	ConnectorID int64  `json:"connector_id" validate:"required,gt=0"`
	SpaceID     int64  `json:"space_id" validate:"required,gt=0"`
	UserID      string `json:"user_id" validate:"required"`

	StartDate  string      `json:"start_date,omitempty"`
	EndDate    string      `json:"end_date,omitempty"`
	MaxItems   int         `json:"max_items,omitempty" validate:"omitempty,gt=0"`
	DriveItems *DriveItems `json:"drive_items,omitempty"`
}

// Validate runs struct-tag validation and reports every failing field at
// once via a *ValidationError.
func (r *TriggerRequest) Validate() error {
	return translate(validate.Struct(r))
}

// TriggerResponse reports back the window a trigger resolved to, so a
// caller can show the user what "now" actually means for this run.
type TriggerResponse struct {
	Message      string `json:"message"`
	ConnectorID  int64  `json:"connector_id"`
	SpaceID      int64  `json:"space_id"`
	IndexingFrom string `json:"indexing_from,omitempty"`
	IndexingTo   string `json:"indexing_to,omitempty"`
}

// RunTrigger is the narrow slice of pkg/scheduler.Scheduler this package
// calls to schedule an immediate claim.
type RunTrigger interface {
	TriggerNow(ctx context.Context, connectorID int64) error
}

// ConnectorLastIndexed resolves the one piece of connector state the
// response's indexing_from/indexing_to window needs: when (if ever) this
// connector last completed a run.
type ConnectorLastIndexed interface {
	LastIndexedAt(ctx context.Context, connectorID int64) (*time.Time, error)
}

// HandleTrigger validates req, schedules an immediate run through trig,
// and reports the date window the run will actually use — the same
// sentinel-normalizing policy pkg/connector.ResolveDateRange applies at
// run time, computed here early only for display.
func HandleTrigger(ctx context.Context, req *TriggerRequest, trig RunTrigger, lookup ConnectorLastIndexed) (*TriggerResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lastIndexedAt, err := lookup.LastIndexedAt(ctx, req.ConnectorID)
	if err != nil {
		return nil, err
	}

	window := connector.ResolveDateRange(req.StartDate, req.EndDate, lastIndexedAt, time.Now(), false)

	if err := trig.TriggerNow(ctx, req.ConnectorID); err != nil {
		return nil, err
	}

	resp := &TriggerResponse{
		Message:     "run scheduled",
		ConnectorID: req.ConnectorID,
		SpaceID:     req.SpaceID,
	}
	if !window.Start.IsZero() {
		resp.IndexingFrom = window.Start.Format(time.RFC3339)
	}
	if !window.End.IsZero() {
		resp.IndexingTo = window.End.Format(time.RFC3339)
	}
	return resp, nil
}
