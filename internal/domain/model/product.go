package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair:
		return true
	}
	return false
}

// 商品画像のURL一覧。DBにはJSON配列の文字列で保存する。
type ImageURLs []string

// Validate は全要素が絶対URL(http/https)か確認する。
func (im ImageURLs) Validate() error {
	for i, raw := range im {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("images[%d]: %w", i, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("images[%d]: must be an absolute http(s) url", i)
		}
	}
	return nil
}

func (im ImageURLs) Value() (driver.Value, error) {
	if im == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(im))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (im *ImageURLs) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*im = ImageURLs{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("images: unsupported type")
	}
	if len(raw) == 0 {
		*im = ImageURLs{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*im = out
	return nil
}

type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Brand       string          `gorm:"type:varchar(100);not null;index" json:"brand"`
	Model       string          `gorm:"type:varchar(100);not null" json:"model"`
	Color       string          `gorm:"type:varchar(50)" json:"color"`
	Storage     string          `gorm:"type:varchar(50)" json:"storage"`
	Condition   Condition       `gorm:"type:varchar(20);not null" json:"condition"`
	Images      ImageURLs       `gorm:"type:text" json:"images"`
	Stock       int64           `gorm:"not null" json:"stock"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
	SellerID    int64           `gorm:"not null;index" json:"seller_id"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
