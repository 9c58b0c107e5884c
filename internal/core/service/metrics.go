package service

import (
	"time"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

type nopMetrics struct{}

func (nopMetrics) RegisterFailed(domain.Stage) {}
func (nopMetrics) Registered(time.Duration) {}
func (nopMetrics) BlobStored(int) {}
func (nopMetrics) Retrieved(string) {}
func (nopMetrics) LoginAttempted(string) {}
