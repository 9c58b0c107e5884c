package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

var _ ports.Metrics = Recorder{}

func TestRecorder_UpdatesCollectors(t *testing.T) {
	r := Recorder{}

	before := testutil.ToFloat64(RegisterFailures.WithLabelValues(string(domain.StageLink)))
	r.RegisterFailed(domain.StageLink)
	if got := testutil.ToFloat64(RegisterFailures.WithLabelValues(string(domain.StageLink))); got != before+1 {
		t.Errorf("register failures: expected %v, got %v", before+1, got)
	}

	before = testutil.ToFloat64(CertificatesRegistered)
	r.Registered(20 * time.Millisecond)
	if got := testutil.ToFloat64(CertificatesRegistered); got != before+1 {
		t.Errorf("registered: expected %v, got %v", before+1, got)
	}

	before = testutil.ToFloat64(BlobBytesStored)
	r.BlobStored(512)
	if got := testutil.ToFloat64(BlobBytesStored); got != before+512 {
		t.Errorf("bytes stored: expected %v, got %v", before+512, got)
	}

	before = testutil.ToFloat64(Retrievals.WithLabelValues("not_found"))
	r.Retrieved("not_found")
	if got := testutil.ToFloat64(Retrievals.WithLabelValues("not_found")); got != before+1 {
		t.Errorf("retrievals: expected %v, got %v", before+1, got)
	}

	before = testutil.ToFloat64(Logins.WithLabelValues("ok"))
	r.LoginAttempted("ok")
	if got := testutil.ToFloat64(Logins.WithLabelValues("ok")); got != before+1 {
		t.Errorf("logins: expected %v, got %v", before+1, got)
	}
}
