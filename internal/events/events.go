// Package events broadcasts committed filter changes between server
// instances and their open sessions.
package events

import (
	"context"

	"github.com/solatis/mediafilter/internal/types"
)

// Event topic constants
const (
	TopicFilterUpdated = "mediafilter.filter.updated"

	// TopicAll matches every mediafilter event.
	TopicAll = "mediafilter.>"
)

// FilterUpdated is emitted after a dataset's committed filter changes.
// OriginSession is the session whose push caused the change, empty when
// the change came from outside any session. OriginInstance names the
// server instance that committed it.
type FilterUpdated struct {
	TenantID       types.TenantID      `json:"tenantId"`
	DatasetID      types.DatasetID     `json:"datasetId"`
	Filter         types.FilterOptions `json:"filter"`
	OriginSession  types.SessionID     `json:"originSession,omitempty"`
	OriginInstance string              `json:"originInstance,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
