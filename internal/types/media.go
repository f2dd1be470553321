package types

import "time"

// SceneState is the annotation state of a media item.
type SceneState string

const (
	SceneAnnotated          SceneState = "ANNOTATED"
	ScenePartiallyAnnotated SceneState = "PARTIALLY_ANNOTATED"
	SceneNone               SceneState = "NONE"
	SceneToRevisit          SceneState = "TO_REVISIT"
	SceneRevisit            SceneState = "REVISIT"
)

// SceneStates lists every known annotation scene state.
var SceneStates = []SceneState{
	SceneAnnotated,
	ScenePartiallyAnnotated,
	SceneNone,
	SceneToRevisit,
	SceneRevisit,
}

// Media is the record filters evaluate against.
// AnnotatedAt is nil for media without an annotation.
type Media struct {
	ID          MediaID    `json:"id"`
	DatasetID   DatasetID  `json:"datasetId"`
	Name        string     `json:"name"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	SceneState  SceneState `json:"sceneState"`
	UploadedAt  time.Time  `json:"uploadedAt"`
	AnnotatedAt *time.Time `json:"annotatedAt,omitempty"`
	LabelIDs    []string   `json:"labelIds"`
}
