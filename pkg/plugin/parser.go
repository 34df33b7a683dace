// Package plugin defines plugin interfaces.
package plugin

import "firestige.xyz/smbtrace/internal/core"

// Parser decodes the application payload of a captured segment.
type Parser interface {
	Plugin
	CanHandle(seg *core.CapturedSegment) bool
	Handle(seg *core.CapturedSegment) (payload any, labels core.Labels, err error)
}
