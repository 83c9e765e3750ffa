package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/dipendra-mule/conducky-sub002/internal/rbac"
)

// EventOwnership adapts the directory store to the resolver's
// EventDirectory contract, translating this package's sentinel into the
// rbac one so the resolver can fail closed on unknown events.
type EventOwnership struct {
	store Store
}

func NewEventOwnership(store Store) (*EventOwnership, error) {
	if store == nil {
		return nil, errors.New("directory: store is required")
	}
	return &EventOwnership{store: store}, nil
}

func (o *EventOwnership) OrganizationIDForEvent(ctx context.Context, eventID string) (string, error) {
	orgID, err := o.store.OrganizationIDForEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: event %s", rbac.ErrNotFound, eventID)
		}
		return "", err
	}
	return orgID, nil
}
