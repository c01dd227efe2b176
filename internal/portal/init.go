// Package portal implements the portal-facing HTTP API: portfolio and
// funding management, provisioning targets, and provisioning status.
package portal

import (
	"github.com/dod-ccpo/atat-sub000/internal/store"
	"github.com/dod-ccpo/atat-sub000/pkg/logging"
)

var (
	st     *store.Store
	logger logging.Logger
)

// Init initializes the handlers with the store and logger
func Init(s *store.Store, log logging.Logger) {
	st = s
	logger = log
}
