package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rohits-web03/dispatch/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Credentials struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type ProfileInput struct {
	Username *string `json:"username" validate:"omitnil,min=1,max=150"`
	Password *string `json:"password" validate:"omitnil,min=6,max=72"`
}

// IdentityService manages user accounts and checks credentials.
type IdentityService struct {
	db   *gorm.DB
	cost int
}

func NewIdentityService(db *gorm.DB, bcryptCost int) *IdentityService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &IdentityService{db: db, cost: bcryptCost}
}

func (s *IdentityService) Register(ctx context.Context, c Credentials) (*models.User, error) {
	if err := validateStruct(c); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(c.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := models.User{Username: c.Username, Password: string(hashed)}
	if err := s.create(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *IdentityService) create(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &Error{Kind: KindAlreadyExists, Message: "username is already taken"}
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Authenticate returns the user when the password matches. Unknown users and
// wrong passwords fail the same way.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, validationError("username and password are required")
	}
	var u models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &Error{Kind: KindUnauthenticated, Message: "invalid credentials"}
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, &Error{Kind: KindUnauthenticated, Message: "invalid credentials"}
	}
	return &u, nil
}

func (s *IdentityService) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Take(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

func (s *IdentityService) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Username != nil {
		updates["username"] = *in.Username
	}
	if in.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password"] = string(hashed)
	}
	if len(updates) == 0 {
		return user, nil
	}

	err := s.db.WithContext(ctx).Model(&models.User{ID: user.ID}).Updates(updates).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, &Error{Kind: KindAlreadyExists, Message: "username is already taken"}
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.Get(ctx, user.ID)
}

// FindOrCreateExternal resolves a user signed in by an external identity
// provider. With register set, an existing account is an error; without it
// a missing account is.
func (s *IdentityService) FindOrCreateExternal(ctx context.Context, username string, register bool) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error
	switch {
	case err == nil:
		if register {
			return nil, &Error{Kind: KindAlreadyExists, Message: "user already exists"}
		}
		return &u, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !register {
			return nil, notFound("user")
		}
		// No password: these accounts can only sign in through the provider.
		u = models.User{Username: username}
		if err := s.create(ctx, &u); err != nil {
			return nil, err
		}
		return &u, nil
	default:
		return nil, fmt.Errorf("load user: %w", err)
	}
}
