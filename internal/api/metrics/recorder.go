package metrics

import (
	"time"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// Recorder reports core workflow outcomes to the package-level collectors.
type Recorder struct{}

func (Recorder) RegisterFailed(stage domain.Stage) {
	RegisterFailures.WithLabelValues(string(stage)).Inc()
}

func (Recorder) Registered(elapsed time.Duration) {
	CertificatesRegistered.Inc()
	RegisterDuration.Observe(elapsed.Seconds())
}

func (Recorder) BlobStored(bytes int) {
	BlobBytesStored.Add(float64(bytes))
}

func (Recorder) Retrieved(result string) {
	Retrievals.WithLabelValues(result).Inc()
}

func (Recorder) LoginAttempted(result string) {
	Logins.WithLabelValues(result).Inc()
}
