package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/shopspring/decimal"
)

// User is a back-office account: vendedor, gerente, caixa or admin. Bonus
// rates are optional; when absent, estimated bonuses come back null instead
// of failing the request.
type User struct {
	ID                         int              `gorm:"primary_key" json:"id"`
	Username                   string           `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name                       string           `gorm:"size:255;not null" json:"name" binding:"required"`
	Email                      *string          `gorm:"size:100;unique" json:"email"`
	Password                   string           `gorm:"size:255;not null" json:"-"`
	Role                       UserRole         `gorm:"type:enum('vendedor','gerente','caixa','admin');default:vendedor" json:"role"`
	Stores                     string           `gorm:"size:255" json:"stores"`
	BonusPercentageAchieved    *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"bonus_percentage_achieved"`
	BonusPercentageNotAchieved *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"bonus_percentage_not_achieved"`
	TeamBonus                  *bool            `gorm:"not null;default:false" json:"team_bonus"`
	IsActive                   *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt                  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

/*
caches:
	User:$username
	User:$id
*/

// AssignedStores splits the CSV store column.
func (user *User) AssignedStores() []string {
	parts := strings.Split(user.Stores, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (user *User) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[User](user.ID); err != nil {
		return err
	}
	return config.RemoveRedisKey("User:" + user.Username)
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err == nil && exists {
		return &user, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, err
	}
	_ = config.SetRedisObject("User:"+username, &user, utils.GetCacheLifespan())
	return &user, nil
}

func GetUserById(ctx context.Context, id int) (*User, error) {
	if cached, err := utils.RetrieveRedis[User](id); err == nil && cached != nil {
		return cached, nil
	}

	var user User
	if err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, normalizeNotFound(err)
	}
	_ = utils.StoreRedis[User](&user, user.ID)
	return &user, nil
}

// GetUsersByRole lists active users of one role, optionally scoped to a store
// (CSV membership on the stores column).
func GetUsersByRole(ctx context.Context, role UserRole, storeId string) ([]User, error) {
	query := config.GetDB().WithContext(ctx).Model(&User{}).
		Where("role = ? AND is_active = ?", role, true)
	if storeId != "" {
		query = query.Where("FIND_IN_SET(?, stores) > 0", storeId)
	}

	var users []User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Login verifies the password and issues a redis-backed session token.
func Login(ctx context.Context, username string, password string) (string, *User, error) {
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, errors.New("invalid credentials")
	}
	if user.IsActive == nil || !*user.IsActive {
		return "", nil, errors.New("account disabled")
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return "", nil, errors.New("invalid credentials")
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		return "", nil, err
	}
	if err := config.SetRedisValue("Token:"+token, user.Username, 24*time.Hour); err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func Logout(ctx context.Context, token string) error {
	return config.RemoveRedisKey("Token:" + token)
}
