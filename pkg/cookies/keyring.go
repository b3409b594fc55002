package cookies

import (
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
)

// KeyringSource reads a JSON cookie array from the system keychain. Useful
// for workstations where cookie files on disk are undesirable.
type KeyringSource struct {
	Service string
	Account string
	Log     logger.Logger
}

func (s *KeyringSource) Load() []models.Cookie {
	data, err := keyring.Get(s.Service, s.Account)
	if err != nil {
		if err != keyring.ErrNotFound {
			s.Log.WithError(err).Warn("keyring lookup failed")
		}
		return nil
	}
	cookies := Parse([]byte(data))
	if cookies == nil {
		s.Log.WarnWithFields("ignoring malformed cookie JSON in keyring", map[string]interface{}{
			"service": s.Service,
			"account": s.Account,
		})
	}
	return cookies
}

// Store writes a JSON cookie array to the system keychain so later runs can
// load it through KeyringSource.
func Store(service, account string, data []byte) error {
	if Parse(data) == nil {
		return fmt.Errorf("refusing to store malformed cookie JSON")
	}
	if err := keyring.Set(service, account, string(data)); err != nil {
		return fmt.Errorf("failed to store cookies in keyring: %w", err)
	}
	return nil
}
