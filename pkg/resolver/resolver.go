package resolver

import (
	"context"
	"errors"
	"fmt"

	"vkharvest/pkg/logger"
	"vkharvest/pkg/models"
	"vkharvest/pkg/store"
	"vkharvest/pkg/vk"
)

// Client defines the part of the VK API the resolver depends on
type Client interface {
	GetGroup(ctx context.Context, id int64) (*vk.GroupPayload, error)
	GetUser(ctx context.Context, id int64) (*vk.UserPayload, error)
}

// Resolver materializes User and Group records by id, preferring the
// persisted store over a network fetch. Once cached, a record is
// authoritative forever: it is never re-fetched or refreshed.
type Resolver struct {
	client Client
	store  store.Store
	logger logger.Logger
}

// New creates a Resolver
func New(client Client, st store.Store, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{
		client: client,
		store:  st,
		logger: log,
	}
}

// ResolveUser returns the user with the given id, fetching and persisting
// it on a cache miss. Only a fetch that succeeded but carried no profile
// (an invalid or deleted id) degrades to a persisted stub record; a failed
// fetch returns the error unpersisted, so a later run with budget left can
// still resolve the id.
func (r *Resolver) ResolveUser(ctx context.Context, id int64) (*models.User, error) {
	cached, err := r.store.GetUser(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	payload, err := r.client.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %d: %w", id, err)
	}

	user := mapUser(id, payload)
	if payload == nil {
		r.logger.WarnWithFields("user response carried no profile, storing stub record", map[string]interface{}{
			"user_id": id,
		})
	}

	if err := r.store.InsertUsers(ctx, []models.User{*user}); err != nil {
		// A duplicate from a concurrent writer is fine; anything else is
		// logged and the in-memory record still serves this run.
		r.logger.WithError(err).WithField("user_id", id).Error("failed to persist user")
	}

	return user, nil
}

// ResolveGroup returns the group with the given id, fetching and persisting
// it on a cache miss. On fetch, the group's declared contact users are
// resolved transitively and batch-persisted before the group itself.
func (r *Resolver) ResolveGroup(ctx context.Context, id int64) (*models.Group, error) {
	cached, err := r.store.GetGroup(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("group lookup failed: %w", err)
	}

	payload, err := r.client.GetGroup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group %d: %w", id, err)
	}

	contacts, err := r.resolveContacts(ctx, payload.Contacts)
	if err != nil {
		return nil, err
	}
	if len(contacts) > 0 {
		if err := r.store.InsertUsers(ctx, contacts); err != nil {
			r.logger.WithError(err).WithField("group_id", id).Error("failed to persist group contacts")
		}
	}

	group := &models.Group{
		ID:          payload.ID,
		Name:        payload.Name,
		ScreenName:  payload.ScreenName,
		IsClosed:    payload.IsClosed != 0,
		Description: payload.Description,
	}
	if group.ID == 0 {
		group.ID = id
	}

	if err := r.store.InsertGroup(ctx, group); err != nil {
		r.logger.WithError(err).WithField("group_id", id).Error("failed to persist group")
	}

	r.logger.InfoWithFields("group resolved", map[string]interface{}{
		"group_id":    group.ID,
		"screen_name": group.ScreenName,
		"contacts":    len(contacts),
	})

	return group, nil
}

// resolveContacts resolves every user id linked from the contact list.
// Entries without a user id (bare email or phone contacts) are skipped.
// Only the fatal credential-expiry error stops the walk.
func (r *Resolver) resolveContacts(ctx context.Context, contacts []vk.ContactPayload) ([]models.User, error) {
	var users []models.User
	for _, contact := range contacts {
		if contact.UserID == 0 {
			continue
		}
		user, err := r.ResolveUser(ctx, contact.UserID)
		if err != nil {
			if vk.IsAuthError(err) {
				return nil, err
			}
			r.logger.WithError(err).WithField("user_id", contact.UserID).Warn("failed to resolve group contact")
			continue
		}
		users = append(users, *user)
	}
	return users, nil
}

// mapUser maps a wire payload defensively: missing fields default to zero
// values and a missing payload yields a stub keyed only by the id.
func mapUser(id int64, payload *vk.UserPayload) *models.User {
	if payload == nil {
		return &models.User{ID: id}
	}

	user := &models.User{
		ID:          payload.ID,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		Deactivated: payload.Deactivated != "",
		IsClosed:    payload.IsClosed != 0,
		About:       payload.About,
	}
	if user.ID == 0 {
		user.ID = id
	}
	return user
}
