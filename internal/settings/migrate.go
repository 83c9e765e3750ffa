package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dipendra-mule/conducky-sub002/internal/fieldcrypt"
	"github.com/dipendra-mule/conducky-sub002/internal/obs"
)

// MigrateLegacySecrets rewrites secret sub-fields stored in the fixed-salt
// three-part format into the per-value-salt four-part format, without
// changing the plaintext. Values already in the new format are detected as
// non-legacy and skipped, so the routine can be re-run safely. Returns the
// number of fields rewritten.
func (s *Service) MigrateLegacySecrets(ctx context.Context) (int, error) {
	migrated := 0
	for key, fields := range secretFields {
		value, err := s.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return migrated, fmt.Errorf("settings: load %s: %w", key, err)
		}
		doc, err := decodeDocument(value)
		if err != nil {
			obs.LogEvent("warn", "skipping non-JSON settings document", map[string]any{"key": key})
			continue
		}

		changed := false
		for _, field := range fields {
			raw, ok := doc[field].(string)
			if !ok || !fieldcrypt.IsLegacyEncrypted(raw) {
				continue
			}
			plaintext := s.codec.Decrypt(raw)
			if plaintext == raw {
				// Legacy-shaped but undecryptable; leave it for a human.
				obs.LogEvent("warn", "legacy-format value failed to decrypt", map[string]any{
					"key":   key,
					"field": field,
				})
				continue
			}
			reencrypted, err := s.codec.Encrypt(plaintext)
			if err != nil {
				return migrated, fmt.Errorf("settings: re-encrypt %s.%s: %w", key, field, err)
			}
			doc[field] = reencrypted
			changed = true
			migrated++
		}
		if !changed {
			continue
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			return migrated, err
		}
		if err := s.store.Set(ctx, key, string(encoded)); err != nil {
			return migrated, fmt.Errorf("settings: persist %s: %w", key, err)
		}
		obs.LogEvent("info", "migrated legacy-encrypted settings document", map[string]any{"key": key})
	}
	return migrated, nil
}
