package api

import (
	"github.com/starford/othala/internal/detect"
	"github.com/starford/othala/internal/refservice"
)

// CreateFileRequest is the request body for creating a file.
type CreateFileRequest struct {
	Path    string `json:"path" example:"topics/graphs.md" validate:"required"`
	Content string `json:"content" example:"# Graphs\nSee [[Trees]]" validate:"required"`
}

// UpdateFileRequest is the request body for updating a file.
type UpdateFileRequest struct {
	Content string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// MoveFileRequest is the request body for renaming a file.
type MoveFileRequest struct {
	From string `json:"from" example:"old/name.md" validate:"required"`
	To   string `json:"to" example:"new/name.md" validate:"required"`
}

// SetPolicyRequest selects the active key-equivalence policy.
type SetPolicyRequest struct {
	ID string `json:"id" example:"case-insensitive" validate:"required"`
}

// DetectionSettingsRequest replaces the detection configuration.
type DetectionSettingsRequest struct {
	Mode       string                    `json:"mode" example:"dictionary" validate:"required"`
	Dictionary detect.DictionarySettings `json:"dictionary"`
	RegexRules []detect.RegexRule        `json:"regex_rules"`
}

// FileDetail is the full file response type (aliased from the domain layer).
type FileDetail = refservice.FileDetail

// FileListItem is a lightweight item in a list response (aliased from the domain layer).
type FileListItem = refservice.FileListItem

// FileListResponse wraps file listings.
type FileListResponse struct {
	Files []FileListItem `json:"files" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// CountsResponse wraps per-key reference counts.
type CountsResponse struct {
	Counts map[string]int `json:"counts" validate:"required"`
}

// DetectionsResponse wraps implicit link detections for one file.
type DetectionsResponse struct {
	Path       string             `json:"path" example:"topics/graphs.md" validate:"required"`
	Detections []detect.Detection `json:"detections" validate:"required"`
}

// PoliciesResponse lists registered policies.
type PoliciesResponse struct {
	Policies []refservice.PolicyInfo `json:"policies" validate:"required"`
}

// DetectionModeResponse reports the active detection mode.
type DetectionModeResponse struct {
	Mode string `json:"mode" example:"dictionary" validate:"required"`
}
