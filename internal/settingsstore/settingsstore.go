// Package settingsstore exposes the typed session preferences persisted
// between runs: the logged-in user id and the theme flag.
package settingsstore

import (
	"fmt"
	"log"
	"strconv"

	"github.com/mrlokans/bookkeeper/internal/entities"
)

// NoUser is the sentinel returned when no user id is persisted.
const NoUser = -1

// KeyValueStore is the storage the preferences are kept in.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

type SettingsStore struct {
	kv KeyValueStore
}

func New(kv KeyValueStore) *SettingsStore {
	return &SettingsStore{kv: kv}
}

// LoggedInUserID returns the persisted user id, or NoUser.
func (s *SettingsStore) LoggedInUserID() int {
	value, ok, err := s.kv.Get(entities.SettingKeyLoggedUserID)
	if err != nil {
		log.Printf("Settings: failed to read %s: %v", entities.SettingKeyLoggedUserID, err)
		return NoUser
	}
	if !ok {
		return NoUser
	}
	id, err := strconv.Atoi(value)
	if err != nil || id <= 0 {
		return NoUser
	}
	return id
}

func (s *SettingsStore) SetLoggedInUserID(id uint) error {
	if err := s.kv.Set(entities.SettingKeyLoggedUserID, strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("save logged user id: %w", err)
	}
	return nil
}

func (s *SettingsStore) ClearLoggedInUserID() error {
	return s.kv.Delete(entities.SettingKeyLoggedUserID)
}

func (s *SettingsStore) DarkTheme() bool {
	value, ok, err := s.kv.Get(entities.SettingKeyDarkTheme)
	if err != nil || !ok {
		return false
	}
	enabled, err := strconv.ParseBool(value)
	return err == nil && enabled
}

func (s *SettingsStore) SetDarkTheme(enabled bool) error {
	if err := s.kv.Set(entities.SettingKeyDarkTheme, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// Clear erases every session preference.
func (s *SettingsStore) Clear() error {
	return s.kv.Delete(entities.SettingKeyLoggedUserID, entities.SettingKeyDarkTheme)
}
