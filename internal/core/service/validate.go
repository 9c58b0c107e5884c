package service

import (
	"fmt"
	"strings"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

func missingFields(names []string) error {
	return fmt.Errorf("%w: %s", domain.ErrMissingField, strings.Join(names, ", "))
}
