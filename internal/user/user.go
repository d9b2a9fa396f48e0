// Package user implements registration, authentication and profile
// maintenance. The mailing list of a tag always contains exactly the users
// interested in that tag, so every operation touching interested tags runs
// its membership changes in the transaction that writes the user.
package user

import (
	"civic/internal/config"
	"civic/internal/mailinglist"
	"civic/internal/municipality"
	"civic/pkg/diff"
	"civic/pkg/domain"
	"civic/pkg/logger"
	"civic/pkg/serrors"
	"civic/pkg/storage"
	"civic/pkg/validation"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Stages reported by serrors.StageOf when Register, Update or Delete fail.
const (
	StageMunicipality = "municipality"
	StageUser         = "user"
	StageMailingList  = "mailingList"
)

// Options configure the user manager. These settings are typically derived
// from application configuration.
type Options struct {
	// BcryptCost is the cost factor of password hashes.
	BcryptCost int
	// RequireEmailValidation makes Register issue a confirmation token to
	// users that are not registered as validated.
	RequireEmailValidation bool
	// Municipality identifies the default municipality.
	Municipality municipality.Options
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		BcryptCost:             cfg.Community.BcryptCost,
		RequireEmailValidation: cfg.Community.RequireEmailValidation,
		Municipality:           municipality.NewOptions(cfg),
	}
}

// RegisterInfo holds the data supplied at registration.
type RegisterInfo struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"  validate:"required"`
	Email     string `json:"email"     validate:"required,email"`
	Password  string `json:"password"  validate:"required,password,maxbytes=72"` //nolint: gosec
	// Municipality is optional. The default municipality is used without it.
	Municipality *domain.MunicipalityID `json:"municipality"`
	// InterestedTags is treated as a set: duplicates are dropped, first
	// occurrence wins.
	InterestedTags []domain.TagID `json:"interestedTags"`
}

// Patch lists the user fields Update may change. Nil fields are left as they
// are.
type Patch struct {
	FirstName      *string                `json:"firstName"      validate:"omitempty,min=1"`
	LastName       *string                `json:"lastName"       validate:"omitempty,min=1"`
	Email          *string                `json:"email"          validate:"omitempty,email"`
	Password       *string                `json:"password"       validate:"omitempty,password,maxbytes=72"` //nolint: gosec
	Municipality   *domain.MunicipalityID `json:"municipality"`
	InterestedTags *[]domain.TagID        `json:"interestedTags"`
	IsAdmin        *bool                  `json:"isAdmin"`
	IsValidated    *bool                  `json:"isValidated"`
}

// manager is the concrete implementation of the Manager interface.
type manager struct {
	// options holds the hashing cost and the default municipality.
	options Options
	// storage is the persistence layer holding users and mailing lists.
	storage   storage.Storage
	validator *validation.Validator
}

// New creates a new Manager backed by the provided storage and configured
// with the given options.
func New(storage storage.Storage, options Options) Manager {
	if options.BcryptCost == 0 {
		options.BcryptCost = bcrypt.DefaultCost
	}

	return &manager{
		options:   options,
		storage:   storage,
		validator: validation.New(),
	}
}

func find(ctx context.Context, tx storage.AllStorage, email string, forUpdate bool) (*domain.User, error) {
	users, err := tx.Users(ctx, storage.UserFilter{Email: strings.TrimSpace(email), ForUpdate: forUpdate})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch user")
	}
	if len(users) == 0 {
		return nil, nil //nolint: nilnil
	}

	return &users[0], nil
}

func get(ctx context.Context, tx storage.AllStorage, email string, forUpdate bool) (*domain.User, error) {
	user, err := find(ctx, tx, email, forUpdate)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, serrors.With(serrors.ErrNotFound, "user %q not found", email)
	}

	return user, nil
}

func (m manager) IsEmailUnique(ctx context.Context, email string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}

	user, err := find(ctx, m.storage, email, false)
	if err != nil {
		return false, err
	}

	return user == nil, nil
}

func (m manager) Register(ctx context.Context, info RegisterInfo, isAdmin bool, isValidated bool) (*domain.User, error) {
	info.FirstName = strings.TrimSpace(info.FirstName)
	info.LastName = strings.TrimSpace(info.LastName)
	info.Email = strings.TrimSpace(info.Email)
	if err := m.validator.Validate(info); err != nil {
		return nil, err
	}

	hash, err := m.hash(info.Password)
	if err != nil {
		return nil, err
	}

	pending := domain.User{
		FirstName:      info.FirstName,
		LastName:       info.LastName,
		Email:          info.Email,
		PasswordHash:   string(hash),
		InterestedTags: diff.Unique(info.InterestedTags),
		IsAdmin:        isAdmin,
		IsValidated:    isValidated,
	}
	if !isValidated && m.options.RequireEmailValidation {
		token := uuid.NewString()
		pending.ConfirmationToken = &token
	}

	var user *domain.User
	err = m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		existing, err := find(ctx, tx, info.Email, true)
		if err != nil {
			return err
		}
		if existing != nil {
			return serrors.With(serrors.ErrConflict, "email %q is already registered", info.Email)
		}

		candidate := pending
		candidate.Municipality, err = m.resolveMunicipality(ctx, tx, info.Municipality)
		if err != nil {
			return err
		}
		if err = lockTags(ctx, tx, candidate.InterestedTags); err != nil {
			return err
		}

		user, err = tx.StoreUser(ctx, candidate)
		if errors.Is(err, storage.ErrDuplicate) {
			return serrors.Wrap(serrors.ErrConflict, err, "email %q is already registered", info.Email)
		}
		if err != nil {
			return serrors.AtStage(serrors.ErrCreationFailed, StageUser, err, "could not store user")
		}

		for _, tagID := range user.InterestedTags {
			if _, err := mailinglist.AddMember(ctx, tx, tagID, user.ID); err != nil {
				return serrors.AtStage(serrors.ErrCreationFailed, StageMailingList, err,
					"could not subscribe user to tag %s", tagID)
			}
		}

		return nil
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not register user")
	}
	logger.Info(ctx, "registered user", zap.Stringer("userID", user.ID), zap.Bool("isAdmin", isAdmin))

	return user, nil
}

// resolveMunicipality checks that a requested municipality exists, or
// resolves the default municipality when none is requested. A requested
// municipality stays locked until tx ends, so it cannot be deleted before the
// user referencing it is written.
func (m manager) resolveMunicipality(ctx context.Context,
	tx storage.AllStorage,
	requested *domain.MunicipalityID) (*domain.MunicipalityID, error) {
	if requested == nil {
		fallback, err := municipality.Default(ctx, tx, m.options.Municipality)
		if err != nil {
			return nil, serrors.AtStage(serrors.ErrCreationFailed, StageMunicipality, err,
				"could not resolve default municipality")
		}

		return &fallback.ID, nil
	}

	found, err := tx.Municipalities(ctx, storage.MunicipalityFilter{ID: requested, ForUpdate: true})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch municipality")
	}
	if len(found) == 0 {
		return nil, serrors.With(serrors.ErrNotFound, "municipality %s not found", requested)
	}

	return &found[0].ID, nil
}

// lockTags checks that every tag exists and locks it until tx ends. Tags are
// locked in id order. Tag deletion locks the tag before collecting its
// followers, so a user subscribing to a tag is either seen by the deletion or
// finds the tag gone.
func lockTags(ctx context.Context, tx storage.AllStorage, tagIDs []domain.TagID) error {
	sorted := slices.Clone(tagIDs)
	slices.SortFunc(sorted, func(a, b domain.TagID) int {
		return strings.Compare(a.String(), b.String())
	})

	for _, tagID := range sorted {
		tags, err := tx.Tags(ctx, storage.TagFilter{ID: &tagID, ForUpdate: true})
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not fetch tag")
		}
		if len(tags) == 0 {
			return serrors.With(serrors.ErrNotFound, "tag %s not found", tagID)
		}
	}

	return nil
}

func (m manager) hash(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.options.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, serrors.Wrap(serrors.ErrBadRequest, err, "password must not exceed 72 bytes")
	}
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not hash password")
	}

	return hash, nil
}

func (m manager) Login(ctx context.Context, email string, password string) (*domain.User, error) {
	user, err := get(ctx, m.storage, email, false)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, serrors.Wrap(serrors.ErrUnauthorized, err, "invalid credentials")
	}

	return user, nil
}

// Update applies patch to the user owning email. It fails with
// serrors.ErrNoModification when no patched field would change. Interested
// tags added by the patch are subscribed and removed ones unsubscribed
// within the same transaction as the field update.
func (m manager) Update(ctx context.Context, email string, patch Patch) (*domain.User, error) {
	if err := m.validator.Validate(patch); err != nil {
		return nil, err
	}
	if patch.InterestedTags != nil {
		tags := diff.Unique(*patch.InterestedTags)
		patch.InterestedTags = &tags
	}
	if patch.Email != nil {
		trimmed := strings.TrimSpace(*patch.Email)
		patch.Email = &trimmed
	}

	var user *domain.User
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		original, err := get(ctx, tx, email, true)
		if err != nil {
			return err
		}

		updates, err := m.updates(ctx, tx, original, patch)
		if err != nil {
			return err
		}

		user, err = tx.UpdateUser(ctx, original.ID, updates)
		if errors.Is(err, storage.ErrDuplicate) {
			return serrors.Wrap(serrors.ErrConflict, err, "email is already registered")
		}
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not update user")
		}
		if user == nil {
			return serrors.With(serrors.ErrNotFound, "user %q not found", email)
		}

		if patch.InterestedTags == nil {
			return nil
		}
		added, removed := diff.Sets(original.InterestedTags, *patch.InterestedTags)
		for _, tagID := range added {
			if _, err := mailinglist.AddMember(ctx, tx, tagID, user.ID); err != nil {
				return serrors.AtStage(serrors.ErrCascadeFailed, StageMailingList, err,
					"could not subscribe user to tag %s", tagID)
			}
		}
		for _, tagID := range removed {
			if _, err := mailinglist.RemoveMember(ctx, tx, tagID, user.ID); err != nil {
				return serrors.AtStage(serrors.ErrCascadeFailed, StageMailingList, err,
					"could not unsubscribe user from tag %s", tagID)
			}
		}

		return nil
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not update user")
	}

	return user, nil
}

// updates turns patch into storage updates, keeping only the fields that
// differ from original.
func (m manager) updates(ctx context.Context,
	tx storage.AllStorage,
	original *domain.User,
	patch Patch) (storage.UserUpdates, error) {
	// a password equal to the current one is not a modification
	if patch.Password != nil &&
		bcrypt.CompareHashAndPassword([]byte(original.PasswordHash), []byte(*patch.Password)) == nil {
		patch.Password = nil
	}

	modified := diff.Modified(original, patch)
	if len(modified) == 0 {
		return storage.UserUpdates{}, serrors.With(serrors.ErrNoModification, "user %q is unchanged", original.Email)
	}

	var updates storage.UserUpdates
	for _, field := range modified {
		switch field {
		case "FirstName":
			updates.FirstName = patch.FirstName
		case "LastName":
			updates.LastName = patch.LastName
		case "Email":
			other, err := find(ctx, tx, *patch.Email, true)
			if err != nil {
				return updates, err
			}
			if other != nil && other.ID != original.ID {
				return updates, serrors.With(serrors.ErrConflict, "email %q is already registered", *patch.Email)
			}
			updates.Email = patch.Email
		case "Password":
			hash, err := m.hash(*patch.Password)
			if err != nil {
				return updates, err
			}
			passwordHash := string(hash)
			updates.PasswordHash = &passwordHash
		case "Municipality":
			if _, err := m.resolveMunicipality(ctx, tx, patch.Municipality); err != nil {
				return updates, err
			}
			updates.Municipality = patch.Municipality
		case "InterestedTags":
			added, _ := diff.Sets(original.InterestedTags, *patch.InterestedTags)
			if err := lockTags(ctx, tx, added); err != nil {
				return updates, err
			}
			updates.InterestedTags = patch.InterestedTags
		case "IsAdmin":
			updates.IsAdmin = patch.IsAdmin
		case "IsValidated":
			updates.IsValidated = patch.IsValidated
		}
	}

	return updates, nil
}

func (m manager) Delete(ctx context.Context, email string) error {
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		user, err := get(ctx, tx, email, true)
		if err != nil {
			return err
		}

		for _, tagID := range user.InterestedTags {
			if _, err := mailinglist.RemoveMember(ctx, tx, tagID, user.ID); err != nil {
				return serrors.AtStage(serrors.ErrCascadeFailed, StageMailingList, err,
					"could not unsubscribe user from tag %s", tagID)
			}
		}

		deleted, err := tx.DeleteUser(ctx, user.ID)
		if err == nil && !deleted {
			err = serrors.With(serrors.ErrNotFound, "user %q not found", email)
		}
		if err != nil {
			return serrors.AtStage(serrors.ErrCascadeFailed, StageUser, err, "could not delete user")
		}
		logger.Info(ctx, "deleted user", zap.Stringer("userID", user.ID))

		return nil
	})

	return serrors.Internal(err, "could not delete user")
}

func (m manager) GetOne(ctx context.Context, email string) (*domain.UserProfile, error) {
	user, err := get(ctx, m.storage, email, false)
	if err != nil {
		return nil, err
	}

	profiles, err := m.profiles(ctx, []domain.User{*user})
	if err != nil {
		return nil, err
	}

	return &profiles[0], nil
}

func (m manager) GetAll(ctx context.Context) ([]domain.UserProfile, error) {
	users, err := m.storage.Users(ctx, storage.UserFilter{})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not list users")
	}

	return m.profiles(ctx, users)
}

// profiles resolves the municipality and interested tags of users. Dangling
// references are left unresolved.
func (m manager) profiles(ctx context.Context, users []domain.User) ([]domain.UserProfile, error) {
	municipalities, err := m.storage.Municipalities(ctx, storage.MunicipalityFilter{})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not list municipalities")
	}
	byMunicipality := make(map[domain.MunicipalityID]domain.Municipality, len(municipalities))
	for _, record := range municipalities {
		byMunicipality[record.ID] = record
	}

	tags, err := m.storage.Tags(ctx, storage.TagFilter{})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not list tags")
	}
	byTag := make(map[domain.TagID]domain.Tag, len(tags))
	for _, tag := range tags {
		byTag[tag.ID] = tag
	}

	profiles := make([]domain.UserProfile, 0, len(users))
	for _, user := range users {
		profile := domain.UserProfile{User: user, Tags: make([]domain.Tag, 0, len(user.InterestedTags))}
		if user.Municipality != nil {
			if record, ok := byMunicipality[*user.Municipality]; ok {
				profile.MunicipalityRecord = &record
			}
		}
		for _, tagID := range user.InterestedTags {
			if tag, ok := byTag[tagID]; ok {
				profile.Tags = append(profile.Tags, tag)
			}
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

func (m manager) Validate(ctx context.Context, email string, token string) (*domain.User, error) {
	var user *domain.User
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		var err error
		user, err = get(ctx, tx, email, true)
		if err != nil {
			return err
		}
		if user.IsValidated {
			return nil
		}
		if user.ConfirmationToken == nil || token == "" || *user.ConfirmationToken != token {
			return serrors.With(serrors.ErrUnauthorized, "invalid confirmation token")
		}

		validated, noToken := true, ""
		user, err = tx.UpdateUser(ctx, user.ID, storage.UserUpdates{
			IsValidated:       &validated,
			ConfirmationToken: &noToken,
		})
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not validate user")
		}
		if user == nil {
			return serrors.With(serrors.ErrNotFound, "user %q not found", email)
		}

		return nil
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not validate user")
	}

	return user, nil
}
