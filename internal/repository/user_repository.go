package repository

import (
	"context"
	"errors"

	"phonemarket/internal/domain/model"
)

// ユーザーが見つかりませんを統一
var ErrUserNotFound = errors.New("user not found")

// email重複
var ErrEmailTaken = errors.New("email already exists")

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成（email重複はErrEmailTaken）
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, limit int) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
}
