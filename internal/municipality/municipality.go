package municipality

import (
	"civic/internal/config"
	"civic/pkg/domain"
	"civic/pkg/logger"
	"civic/pkg/serrors"
	"civic/pkg/storage"
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// StageUsers names the user reassignment step of a municipality deletion.
const StageUsers = "users"

// Options configure the municipality manager.
type Options struct {
	// DefaultMunicipality is the name of the municipality assigned to users
	// without one. It is matched case-insensitively.
	DefaultMunicipality string
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		DefaultMunicipality: cfg.Community.DefaultMunicipality,
	}
}

// IsDefault reports whether name designates the default municipality.
func (o Options) IsDefault(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), o.DefaultMunicipality)
}

// Find returns the municipality named name, or nil when there is none.
func Find(ctx context.Context, tx storage.AllStorage, name string, forUpdate bool) (*domain.Municipality, error) {
	found, err := tx.Municipalities(ctx, storage.MunicipalityFilter{Name: name, ForUpdate: forUpdate})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch municipality")
	}
	if len(found) == 0 {
		return nil, nil //nolint: nilnil
	}

	return &found[0], nil
}

// GetOrCreateDefault resolves name using tx, creating it when it is missing
// and names the default municipality.
func GetOrCreateDefault(ctx context.Context,
	tx storage.AllStorage,
	options Options,
	name string) (*domain.Municipality, error) {
	name = strings.TrimSpace(name)
	existing, err := Find(ctx, tx, name, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if !options.IsDefault(name) {
		return nil, serrors.With(serrors.ErrNotFound, "municipality %q not found", name)
	}

	created, err := tx.StoreMunicipality(ctx, domain.Municipality{Municipality: options.DefaultMunicipality})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not create default municipality")
	}
	logger.Info(ctx, "created default municipality", zap.Stringer("municipalityID", created.ID))

	return created, nil
}

// Default resolves the default municipality using tx, creating it if needed.
func Default(ctx context.Context, tx storage.AllStorage, options Options) (*domain.Municipality, error) {
	return GetOrCreateDefault(ctx, tx, options, options.DefaultMunicipality)
}

// manager is the concrete implementation of the Manager interface.
type manager struct {
	// options identifies the default municipality.
	options Options
	// storage is the persistence layer holding municipalities and users.
	storage storage.Storage
}

// New creates a new Manager backed by the provided storage.
func New(storage storage.Storage, options Options) Manager {
	return &manager{
		options: options,
		storage: storage,
	}
}

func (m manager) GetOrCreateDefault(ctx context.Context, name string) (*domain.Municipality, error) {
	var municipality *domain.Municipality
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		var err error
		municipality, err = GetOrCreateDefault(ctx, tx, m.options, name)

		return err
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not resolve municipality")
	}

	return municipality, nil
}

func (m manager) Get(ctx context.Context, name string) (*domain.Municipality, error) {
	municipality, err := Find(ctx, m.storage, strings.TrimSpace(name), false)
	if err != nil {
		return nil, err
	}
	if municipality == nil {
		return nil, serrors.With(serrors.ErrNotFound, "municipality %q not found", name)
	}

	return municipality, nil
}

func (m manager) List(ctx context.Context) ([]domain.Municipality, error) {
	municipalities, err := m.storage.Municipalities(ctx, storage.MunicipalityFilter{})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not list municipalities")
	}

	return municipalities, nil
}

// Create stores a new municipality. Names are unique case-insensitively.
func (m manager) Create(ctx context.Context, name string) (*domain.Municipality, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, serrors.With(serrors.ErrBadRequest, "municipality name is required")
	}

	var municipality *domain.Municipality
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		existing, err := Find(ctx, tx, name, true)
		if err != nil {
			return err
		}
		if existing != nil {
			return serrors.With(serrors.ErrConflict, "municipality %q already exists", name)
		}

		municipality, err = tx.StoreMunicipality(ctx, domain.Municipality{Municipality: name})
		if errors.Is(err, storage.ErrDuplicate) {
			return serrors.Wrap(serrors.ErrConflict, err, "municipality %q already exists", name)
		}
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not store municipality")
		}

		return nil
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not create municipality")
	}

	return municipality, nil
}

// Delete removes the municipality named name. Users left without a resolvable
// municipality are moved to the default one, which is created if needed. The
// default municipality itself is never deleted.
func (m manager) Delete(ctx context.Context, name string) error {
	if m.options.IsDefault(name) {
		return serrors.With(serrors.ErrForbidden, "the default municipality cannot be deleted")
	}

	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		target, err := Find(ctx, tx, strings.TrimSpace(name), true)
		if err != nil {
			return err
		}
		if target == nil {
			return serrors.With(serrors.ErrNotFound, "municipality %q not found", name)
		}

		deleted, err := tx.DeleteMunicipality(ctx, target.ID)
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not delete municipality")
		}
		if !deleted {
			return serrors.With(serrors.ErrNotFound, "municipality %q not found", name)
		}

		reassigned, err := m.reassignUsers(ctx, tx)
		if err != nil {
			return serrors.AtStage(serrors.ErrCascadeFailed, StageUsers, err,
				"could not reassign users of municipality %q", name)
		}
		logger.Info(ctx, "deleted municipality",
			zap.Stringer("municipalityID", target.ID),
			zap.Int("reassignedUsers", reassigned))

		return nil
	})

	return serrors.Internal(err, "could not delete municipality")
}

// reassignUsers moves every user whose municipality is unset or no longer
// resolves to the default municipality.
func (m manager) reassignUsers(ctx context.Context, tx storage.AllStorage) (int, error) {
	municipalities, err := tx.Municipalities(ctx, storage.MunicipalityFilter{})
	if err != nil {
		return 0, serrors.Wrap(serrors.ErrInternal, err, "could not fetch municipalities")
	}
	known := make(map[domain.MunicipalityID]struct{}, len(municipalities))
	for _, municipality := range municipalities {
		known[municipality.ID] = struct{}{}
	}

	users, err := tx.Users(ctx, storage.UserFilter{ForUpdate: true})
	if err != nil {
		return 0, serrors.Wrap(serrors.ErrInternal, err, "could not fetch users")
	}

	var fallback *domain.Municipality
	reassigned := 0
	for _, user := range users {
		if user.Municipality != nil {
			if _, ok := known[*user.Municipality]; ok {
				continue
			}
		}

		if fallback == nil {
			fallback, err = Default(ctx, tx, m.options)
			if err != nil {
				return reassigned, err
			}
		}

		updated, err := tx.UpdateUser(ctx, user.ID, storage.UserUpdates{Municipality: &fallback.ID})
		if err != nil {
			return reassigned, serrors.Wrap(serrors.ErrInternal, err, "could not update user %s", user.ID)
		}
		if updated == nil {
			return reassigned, serrors.With(serrors.ErrNotFound, "user %s not found", user.ID)
		}
		reassigned++
	}

	return reassigned, nil
}

// Update renames a municipality. The default municipality is identified by
// its name, so renaming it is forbidden.
func (m manager) Update(ctx context.Context, currentName string, newName string) (*domain.Municipality, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, serrors.With(serrors.ErrBadRequest, "municipality name is required")
	}
	if m.options.IsDefault(currentName) && !m.options.IsDefault(newName) {
		return nil, serrors.With(serrors.ErrForbidden, "the default municipality cannot be renamed")
	}

	var municipality *domain.Municipality
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		current, err := Find(ctx, tx, strings.TrimSpace(currentName), true)
		if err != nil {
			return err
		}
		if current == nil {
			return serrors.With(serrors.ErrNotFound, "municipality %q not found", currentName)
		}

		other, err := Find(ctx, tx, newName, true)
		if err != nil {
			return err
		}
		if other != nil && other.ID != current.ID {
			return serrors.With(serrors.ErrConflict, "municipality %q already exists", newName)
		}
		if current.Municipality == newName {
			return serrors.With(serrors.ErrNotFound, "municipality %q was not modified", currentName)
		}

		municipality, err = tx.UpdateMunicipality(ctx, current.ID, newName)
		if errors.Is(err, storage.ErrDuplicate) {
			return serrors.Wrap(serrors.ErrConflict, err, "municipality %q already exists", newName)
		}
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not update municipality")
		}
		if municipality == nil {
			return serrors.With(serrors.ErrNotFound, "municipality %q was not modified", currentName)
		}

		return nil
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not update municipality")
	}

	return municipality, nil
}
