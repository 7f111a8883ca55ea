// Package memory es un identity store en proceso. Sirve para desarrollo,
// tests y despliegues de un solo nodo sin base de datos.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	tokens "github.com/dropDatabas3/authority/internal/security/token"
)

// Store implementa repository.UserRepository. Los índices únicos (email,
// username, provider+external_id) se chequean bajo el mismo lock que la
// escritura, así dos upserts concurrentes nunca crean dos usuarios.
type Store struct {
	mu         sync.RWMutex
	users      map[string]*repository.User
	byEmail    map[string]string
	byUsername map[string]string
	byExternal map[string]string
	roles      map[string]repository.Role
	now        func() time.Time
}

var _ repository.UserRepository = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[string]*repository.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		byExternal: make(map[string]string),
		roles:      make(map[string]repository.Role),
		now:        time.Now,
	}
}

// SeedRoles registra roles (con sus permisos). Reemplaza roles con el mismo nombre.
func (s *Store) SeedRoles(roles ...repository.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range roles {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.roles[r.Name] = r
	}
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func externalKey(provider, id string) string { return provider + ":" + id }

func (s *Store) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.users[id].Clone(), nil
}

func (s *Store) GetByID(_ context.Context, id string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetByExternal(_ context.Context, provider, externalID string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalKey(provider, externalID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.users[id].Clone(), nil
}

func (s *Store) CreateOrUpdateExternal(_ context.Context, in repository.ExternalIdentity) (*repository.User, bool, error) {
	if in.Provider == "" || in.ExternalID == "" || in.Email == "" {
		return nil, false, fmt.Errorf("%w: provider, external id and email are required", repository.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()

	// 1) identidad ya vinculada
	if id, ok := s.byExternal[externalKey(in.Provider, in.ExternalID)]; ok {
		u := s.users[id]
		u.EmailVerified = in.EmailVerified
		if in.ProviderRefreshToken != "" {
			u.ProviderRefreshToken = in.ProviderRefreshToken
		}
		if u.Name == "" {
			u.Name = in.Name
		}
		u.UpdatedAt = now
		return u.Clone(), false, nil
	}

	// 2) usuario local con el mismo email: se vincula solo si el IdP lo verificó
	if id, ok := s.byEmail[normEmail(in.Email)]; ok {
		u := s.users[id]
		if !in.EmailVerified || u.ExternalID != "" {
			return nil, false, fmt.Errorf("%w: email %s already registered", repository.ErrConflict, normEmail(in.Email))
		}
		u.Provider = in.Provider
		u.ExternalID = in.ExternalID
		u.EmailVerified = true
		u.ProviderRefreshToken = in.ProviderRefreshToken
		u.UpdatedAt = now
		s.byExternal[externalKey(in.Provider, in.ExternalID)] = u.ID
		return u.Clone(), false, nil
	}

	// 3) alta
	u := &repository.User{
		ID:                   uuid.NewString(),
		Email:                normEmail(in.Email),
		Username:             s.freeUsernameLocked(in.Email),
		Name:                 in.Name,
		Active:               true,
		Provider:             in.Provider,
		ExternalID:           in.ExternalID,
		EmailVerified:        in.EmailVerified,
		ProviderRefreshToken: in.ProviderRefreshToken,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.insertLocked(u)
	return u.Clone(), true, nil
}

func (s *Store) Create(_ context.Context, in *repository.User) (*repository.User, error) {
	if in == nil || in.Email == "" {
		return nil, fmt.Errorf("%w: email is required", repository.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := in.Clone()
	u.Email = normEmail(u.Email)
	if u.Username == "" {
		u.Username = s.freeUsernameLocked(u.Email)
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return nil, fmt.Errorf("%w: email %s", repository.ErrConflict, u.Email)
	}
	if _, ok := s.byUsername[strings.ToLower(u.Username)]; ok {
		return nil, fmt.Errorf("%w: username %s", repository.ErrConflict, u.Username)
	}
	if u.ExternalID != "" {
		if _, ok := s.byExternal[externalKey(u.Provider, u.ExternalID)]; ok {
			return nil, fmt.Errorf("%w: identity %s", repository.ErrConflict, externalKey(u.Provider, u.ExternalID))
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.insertLocked(u)
	return u.Clone(), nil
}

func (s *Store) Update(_ context.Context, in *repository.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[in.ID]
	if !ok {
		return repository.ErrNotFound
	}
	email := normEmail(in.Email)
	if id, ok := s.byEmail[email]; ok && id != in.ID {
		return fmt.Errorf("%w: email %s", repository.ErrConflict, email)
	}
	if id, ok := s.byUsername[strings.ToLower(in.Username)]; ok && id != in.ID {
		return fmt.Errorf("%w: username %s", repository.ErrConflict, in.Username)
	}
	if in.ExternalID != "" {
		key := externalKey(in.Provider, in.ExternalID)
		if id, ok := s.byExternal[key]; ok && id != in.ID {
			return fmt.Errorf("%w: identity %s", repository.ErrConflict, key)
		}
	}

	delete(s.byEmail, cur.Email)
	delete(s.byUsername, strings.ToLower(cur.Username))
	if cur.ExternalID != "" {
		delete(s.byExternal, externalKey(cur.Provider, cur.ExternalID))
	}

	u := in.Clone()
	u.Email = email
	u.Roles = cur.Roles
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = s.now().UTC()
	s.insertLocked(u)
	return nil
}

func (s *Store) AssignRoles(_ context.Context, userID string, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	roles := make([]repository.Role, 0, len(names))
	for _, n := range names {
		r, ok := s.roles[n]
		if !ok {
			return fmt.Errorf("%w: role %s", repository.ErrNotFound, n)
		}
		roles = append(roles, r)
	}
	u.Roles = roles
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) insertLocked(u *repository.User) {
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	s.byUsername[strings.ToLower(u.Username)] = u.ID
	if u.ExternalID != "" {
		s.byExternal[externalKey(u.Provider, u.ExternalID)] = u.ID
	}
}

// freeUsernameLocked deriva el username de la parte local del email y le
// agrega un sufijo aleatorio si ya está tomado.
func (s *Store) freeUsernameLocked(email string) string {
	base := normEmail(email)
	if at := strings.IndexByte(base, '@'); at > 0 {
		base = base[:at]
	}
	if base == "" {
		base = "user"
	}
	name := base
	for i := 0; ; i++ {
		if _, taken := s.byUsername[name]; !taken {
			return name
		}
		suffix, err := tokens.GenerateOpaqueToken(3)
		if err != nil || i > 8 {
			suffix = uuid.NewString()[:8]
		}
		name = base + "-" + strings.ToLower(suffix)
	}
}
