package ports

import (
	"time"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// Metrics receives workflow outcomes from the core services.
type Metrics interface {
	RegisterFailed(stage domain.Stage)
	Registered(elapsed time.Duration)
	BlobStored(bytes int)
	// Retrieved takes one of "ok", "not_found", "invalid" or "error".
	Retrieved(result string)
	LoginAttempted(result string)
}
