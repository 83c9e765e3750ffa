// Package settings stores system configuration documents under named keys.
// The email and OAuth documents carry secrets (SMTP password, client
// secrets) that are field-encrypted before they reach the database.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/fieldcrypt"
)

var (
	ErrNotFound     = errors.New("settings: not found")
	ErrInvalidInput = errors.New("settings: invalid input")
)

// secretFields names the sub-fields encrypted at rest within each known
// settings document. The migration enumerates exactly this table.
var secretFields = map[string][]string{
	"email":       {"smtpPassword"},
	"googleOAuth": {"clientSecret"},
	"githubOAuth": {"clientSecret"},
}

// Store persists raw setting values by key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Service encrypts secret sub-fields on write and decrypts them on read.
type Service struct {
	store    Store
	codec    *fieldcrypt.Codec
	recorder *audit.Recorder
}

func NewService(store Store, codec *fieldcrypt.Codec, recorder *audit.Recorder) (*Service, error) {
	if store == nil || codec == nil || recorder == nil {
		return nil, errors.New("settings: store, codec and audit recorder are required")
	}
	return &Service{store: store, codec: codec, recorder: recorder}, nil
}

// Set stores a setting. Documents under the known secret-bearing keys must
// be JSON objects; their secret sub-fields are encrypted in place.
func (s *Service) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidInput)
	}

	fields, known := secretFields[key]
	if known {
		doc, err := decodeDocument(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be a JSON object", ErrInvalidInput, key)
		}
		for _, field := range fields {
			raw, ok := doc[field].(string)
			if !ok || raw == "" || fieldcrypt.IsEncrypted(raw) {
				continue
			}
			encrypted, err := s.codec.Encrypt(raw)
			if err != nil {
				return err
			}
			doc[field] = encrypted
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		value = string(encoded)
	}

	if err := s.store.Set(ctx, key, value); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.Entry{
		Action:     "settings.update",
		TargetType: "setting",
		TargetID:   key,
	})
	return nil
}

// Get returns a setting with its secret sub-fields decrypted.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	value, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}

	fields, known := secretFields[key]
	if !known {
		return value, nil
	}
	doc, err := decodeDocument(value)
	if err != nil {
		// Stored before this key was structured; surface as-is.
		return value, nil
	}
	for _, field := range fields {
		if raw, ok := doc[field].(string); ok {
			doc[field] = s.codec.Decrypt(raw)
		}
	}
	decoded, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func decodeDocument(value string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
