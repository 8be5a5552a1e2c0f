package security

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeychainService is the service name used for storing passwords in the
// OS keychain.
const KeychainService = "irc-engine"

// Keychain stores server and SASL passwords in the OS keychain so they
// never land in the configuration files or the preferences database.
type Keychain struct{}

// NewKeychain creates a new keychain instance.
func NewKeychain() *Keychain {
	return &Keychain{}
}

// StorePassword stores a password under an account key (a SASL account or
// a server host). An empty password deletes the entry instead.
func (k *Keychain) StorePassword(account string, password string) error {
	if password == "" {
		return k.DeletePassword(account)
	}
	if err := keyring.Set(KeychainService, account, password); err != nil {
		return fmt.Errorf("failed to store password in keychain: %w", err)
	}
	return nil
}

// GetPassword retrieves a stored password. A missing entry returns an
// empty password, not an error.
func (k *Keychain) GetPassword(account string) (string, error) {
	password, err := keyring.Get(KeychainService, account)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get password from keychain: %w", err)
	}
	return password, nil
}

// DeletePassword removes a stored password. Missing entries are not an
// error.
func (k *Keychain) DeletePassword(account string) error {
	if err := keyring.Delete(KeychainService, account); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete password from keychain: %w", err)
	}
	return nil
}

// SASLPassword satisfies the transport's password source.
func (k *Keychain) SASLPassword(account string) (string, error) {
	return k.GetPassword(account)
}
