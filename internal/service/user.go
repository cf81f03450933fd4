package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/repository"
)

// UserService manages operator and sponsor-portal accounts. Only sponsor
// accounts may own sponsor profiles; the portal scopes them to those.
type UserService struct {
	repo repository.UsersRepository
}

// NewUserService builds a new UserService instance.
func NewUserService(repo repository.UsersRepository) *UserService {
	return &UserService{repo: repo}
}

// ListUsers returns accounts, optionally narrowed to a role or an email fragment.
func (s *UserService) ListUsers(ctx context.Context, query dto.UserListQuery) ([]dto.UserResponse, error) {
	filter := repository.UserFilter{
		Role:   strings.TrimSpace(query.Role),
		Search: strings.TrimSpace(query.Search),
	}
	if filter.Role != "" && !validRole(filter.Role) {
		return nil, invalidf("unknown role %q", filter.Role)
	}

	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, toUserResponse(&users[i]))
	}
	return responses, nil
}

// CreateUser provisions an account. Role defaults to operator.
func (s *UserService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := strings.TrimSpace(req.Role)

	if email == "" || req.Password == "" {
		return nil, invalidf("email and password are required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalidf("password must be at least %d characters", minPasswordLength)
	}
	if role == "" {
		role = entity.RoleOperator
	}
	if !validRole(role) {
		return nil, invalidf("unknown role %q", role)
	}

	sponsorIDs, err := parseSponsorIDs(req.SponsorIDs)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(role, sponsorIDs); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, repository.UserInput{
		Email:        email,
		PasswordHash: string(hashed),
		Role:         role,
		SponsorIDs:   sponsorIDs,
	})
	if err != nil {
		return nil, linkError(err)
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// UpdateUser mutates selected account fields. Moving an account off the
// sponsor role releases the profiles it owned.
func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var patch repository.UserPatch
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email == "" {
			return nil, invalidf("email cannot be empty")
		}
		patch.Email = &email
	}

	role := current.Role
	if req.Role != nil {
		role = strings.TrimSpace(*req.Role)
		if !validRole(role) {
			return nil, invalidf("unknown role %q", role)
		}
		patch.Role = &role
	}

	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return nil, invalidf("password must be at least %d characters", minPasswordLength)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		pwd := string(hashed)
		patch.PasswordHash = &pwd
	}

	owned := current.SponsorIDs
	if req.SponsorIDs != nil {
		if patch.SponsorIDs, err = parseSponsorIDs(*req.SponsorIDs); err != nil {
			return nil, err
		}
		owned = patch.SponsorIDs
	} else if role != entity.RoleSponsor && len(current.SponsorIDs) > 0 {
		patch.SponsorIDs = []uuid.UUID{}
		owned = nil
	}
	if err := checkOwnership(role, owned); err != nil {
		return nil, err
	}

	user, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, linkError(err)
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// DeleteUser removes an account. Administrators cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID, actor entity.Actor) error {
	if actor.UserID == id {
		return invalidf("you cannot delete your own account")
	}
	return s.repo.Delete(ctx, id)
}

func checkOwnership(role string, sponsorIDs []uuid.UUID) error {
	if role != entity.RoleSponsor && len(sponsorIDs) > 0 {
		return invalidf("only sponsor accounts can own sponsor profiles")
	}
	return nil
}

func parseSponsorIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			return nil, invalidf("invalid sponsor id %q", value)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func linkError(err error) error {
	if errors.Is(err, repository.ErrSponsorNotFound) {
		return invalidf("sponsor_ids references an unknown sponsor profile")
	}
	return err
}

func toUserResponse(user *entity.User) dto.UserResponse {
	sponsors := make([]string, 0, len(user.SponsorIDs))
	for _, id := range user.SponsorIDs {
		sponsors = append(sponsors, id.String())
	}
	return dto.UserResponse{
		ID:         user.ID.String(),
		Email:      user.Email,
		Role:       user.Role,
		SponsorIDs: sponsors,
		CreatedAt:  user.CreatedAt,
	}
}

func validRole(role string) bool {
	switch role {
	case entity.RoleAdmin, entity.RoleOperator, entity.RoleSponsor:
		return true
	}
	return false
}
