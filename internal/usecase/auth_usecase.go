package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"phonemarket/internal/domain/model"
	"phonemarket/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限
const accessTokenTTL = 24 * time.Hour

const bcryptCost = 12

type UserDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type JwtAccessTokenDTO struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type AuthRegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=buyer seller"`
}

type AuthRegisterResponse struct {
	User UserDTO `json:"user"`
}

type AuthLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type AuthUsecase struct {
	jwtSecret string
	users     repository.UserRepository
	now       func() time.Time
}

func NewAuthUsecase(jwtSecret string, users repository.UserRepository) *AuthUsecase {
	return &AuthUsecase{
		jwtSecret: jwtSecret,
		users:     users,
		now:       time.Now,
	}
}

// 公開登録はbuyer/sellerのみ
func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (*AuthRegisterResponse, error) {
	role, err := model.ParseRole(strings.TrimSpace(req.Role))
	if err != nil || role == model.RoleAdmin {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid role")
	}

	user, err := u.createUser(ctx, req.Name, req.Email, req.Password, role)
	if err != nil {
		return nil, err
	}
	return &AuthRegisterResponse{User: toUserDTO(user)}, nil
}

// 管理者作成（cmd/create-adminから）
func (u *AuthUsecase) CreateAdmin(ctx context.Context, name, email, password string) (UserDTO, error) {
	user, err := u.createUser(ctx, name, email, password, model.RoleAdmin)
	if err != nil {
		return UserDTO{}, err
	}
	return toUserDTO(user), nil
}

func (u *AuthUsecase) createUser(ctx context.Context, name, email, password string, role model.Role) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "name, email and password are required")
	}

	//重複は先に確認（同時登録はrepoのunique違反で拾う）
	if _, err := u.users.FindByEmail(ctx, email); err == nil {
		return nil, NewHTTPError(http.StatusConflict, "user already exists")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, dbError(err)
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, wrapHTTPError(http.StatusInternalServerError, "internal error", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(pwHash),
		Role:         role,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, NewHTTPError(http.StatusConflict, "user already exists")
		}
		return nil, dbError(err)
	}
	return user, nil
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest) (*AuthLoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	//ユーザー取得
	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, dbError(err)
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, expiresIn, err := u.issueAccessToken(user)
	if err != nil {
		return nil, wrapHTTPError(http.StatusInternalServerError, "internal error", err)
	}

	return &AuthLoginResponse{
		User: toUserDTO(user),
		Token: JwtAccessTokenDTO{
			AccessToken: token,
			ExpiresIn:   expiresIn,
		},
	}, nil
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (*UserDTO, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		return nil, dbError(err)
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// jwt発行
func (u *AuthUsecase) issueAccessToken(user *model.User) (string, int, error) {
	now := u.now()
	exp := now.Add(accessTokenTTL)

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString([]byte(u.jwtSecret))
	if err != nil {
		return "", 0, err
	}

	return signed, int(accessTokenTTL.Seconds()), nil
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  string(u.Role),
	}
}
