package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"installpro/internal/model"
	"installpro/internal/repository"
	"installpro/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// DTOs for Request validation
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=vendor installer admin super_admin purchasing"`
}

type LoginUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	Role     string    `json:"role"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	ListInstallers(ctx context.Context) ([]UserResponse, error)
	ResolveActor(ctx context.Context, id uuid.UUID) (model.Actor, error)
}

type userService struct {
	repo      repository.UserRepository
	jwtSecret []byte
	now       func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, jwtSecret string) UserService {
	return &userService{repo: repo, jwtSecret: []byte(jwtSecret), now: time.Now}
}

func mapToResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Name:     user.Name,
		Username: user.Username,
		Email:    user.Email,
		Phone:    user.Phone,
		Role:     user.Role,
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if !model.IsKnownRole(req.Role) {
		return nil, apperror.Invalid(fmt.Sprintf("Rol inválido: %q", req.Role))
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Invalid("El nombre es obligatorio")
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, apperror.Conflict("El nombre de usuario ya existe")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err, "No se pudo procesar la contraseña")
	}

	user := &model.User{
		Name:     strings.TrimSpace(req.Name),
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: string(hashedPassword),
		Role:     req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("El usuario o correo ya existe")
		}
		return nil, apperror.Internal(err, "No se pudo crear el usuario")
	}

	resp := mapToResponse(user)
	return &resp, nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.Unauthorized("Usuario o contraseña incorrectos")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperror.Unauthorized("Usuario o contraseña incorrectos")
	}

	expiresAt := s.now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  expiresAt.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperror.Internal(err, "No se pudo generar el token")
	}

	return &TokenResponse{Token: tokenString, ExpiresAt: expiresAt, User: mapToResponse(user)}, nil
}

func (s *userService) ListInstallers(ctx context.Context) ([]UserResponse, error) {
	users, err := s.repo.ListByRoles(ctx, model.RoleInstaller)
	if err != nil {
		return nil, apperror.Internal(err, "No se pudieron listar los instaladores")
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, mapToResponse(&users[i]))
	}
	return out, nil
}

// ResolveActor maps an authenticated user id to the identity used by the
// project engine.
func (s *userService) ResolveActor(ctx context.Context, id uuid.UUID) (model.Actor, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Actor{}, apperror.Unauthorized("Usuario no encontrado")
	}
	if err != nil {
		return model.Actor{}, apperror.Internal(err, "No se pudo cargar el usuario")
	}
	return user.Actor(), nil
}
