// Package plugin defines plugin interfaces.
package plugin

import (
	"context"

	"firestige.xyz/smbtrace/internal/core"
)

// Reporter delivers output records to a sink.
type Reporter interface {
	Plugin
	Report(ctx context.Context, rec *core.OutputRecord) error
	Flush(ctx context.Context) error
}
