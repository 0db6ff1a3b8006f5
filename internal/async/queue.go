package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/receipts-sync/internal/cache"
)

// Job asks for one cached view to be refetched.
type Job struct {
	View        cache.ViewKey
	Force       bool // enqueue even if the view is already pending
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
