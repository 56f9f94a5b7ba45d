// Package users serves user records through the read-through cache and
// keeps the cache consistent on every write.
package users

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/unkn0wn-root/usercache"
	"github.com/unkn0wn-root/usercache/internal/store"
)

var ErrValidation = errors.New("users: invalid input")

// ValidationError lists the offending fields of a payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for n := range e.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + ": " + e.Fields[n]
	}
	return "users: invalid input: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Input is the writable part of a user.
type Input struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type Service struct {
	store    store.Store
	cache    *usercache.Resource[store.User]
	log      usercache.Logger
	validate *validator.Validate
}

func New(st store.Store, cache *usercache.Resource[store.User], log usercache.Logger) *Service {
	if log == nil {
		log = usercache.NopLogger{}
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Service{store: st, cache: cache, log: log, validate: v}
}

func (s *Service) List(ctx context.Context) ([]store.User, error) {
	return usercache.Timed(s.log, "user_list_cache", func() ([]store.User, error) {
		return s.cache.List(ctx, s.store.List)
	})
}

// Get returns store.ErrNotFound for an unknown id.
func (s *Service) Get(ctx context.Context, id int64) (store.User, error) {
	return usercache.Timed(s.log, "user_detail_cache", func() (store.User, error) {
		return s.cache.Get(ctx, id, func(ctx context.Context) (store.User, error) {
			return s.store.Get(ctx, id)
		})
	})
}

func (s *Service) Create(ctx context.Context, in Input) (store.User, error) {
	if err := s.check(in); err != nil {
		return store.User{}, err
	}
	u := in.user(0)
	err := s.store.Create(ctx, &u)
	if mayHaveCommitted(err) {
		s.cache.OnCreate(ctx)
	}
	if err != nil {
		return store.User{}, err
	}
	return u, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (store.User, error) {
	if err := s.check(in); err != nil {
		return store.User{}, err
	}
	u := in.user(id)
	err := s.store.Update(ctx, &u)
	if mayHaveCommitted(err) {
		s.cache.OnUpdate(ctx, id)
	}
	if err != nil {
		return store.User{}, err
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Delete(ctx, id)
	if mayHaveCommitted(err) {
		s.cache.OnDelete(ctx, id)
	}
	return err
}

// mayHaveCommitted reports whether a write that returned err could have
// changed the table. Only ErrNotFound proves that no row was touched; any
// other failure (a lost commit ack, a failed re-read) leaves the outcome
// unknown and the cached entries must go.
func mayHaveCommitted(err error) bool {
	return !errors.Is(err, store.ErrNotFound)
}

// Warm loads every user into the cache.
func (s *Service) Warm(ctx context.Context) (usercache.WarmReport, error) {
	rep, err := s.cache.WarmAll(ctx, s.store.List)
	if err != nil {
		return rep, fmt.Errorf("users: warm cache: %w", err)
	}
	return rep, nil
}

func (s *Service) Stats(ctx context.Context) usercache.Stats {
	return s.cache.Stats(ctx)
}

func (s *Service) check(in Input) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ve.Fields[fe.Field()] = fe.Tag()
	}
	return ve
}

func (in Input) user(id int64) store.User {
	return store.User{
		ID:        id,
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
}
