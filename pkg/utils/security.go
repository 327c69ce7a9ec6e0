package utils

import (
	"errors"
	"fmt"
	"time"

	"melodia-go/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// 账号服务与本服务的时钟偏差容忍
const clockSkew = 30 * time.Second

// Claims 账号服务签发的令牌内容，评论与点赞只关心 user_id
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken 按账号服务的格式签发令牌，供测试和运维工具使用
func GenerateToken(userID int64) (string, error) {
	jwtCfg := config.GetJWT()
	now := time.Now()

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtCfg.ExpireDuration())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    config.GetApp().Name,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtCfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken 校验令牌并返回 Claims。只接受 HS256，必须带过期时间，user_id 必须为正。
func ParseToken(tokenString string) (*Claims, error) {
	secret := []byte(config.GetJWT().Secret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ViewerID 从令牌中取出当前评论用户的 ID
func ViewerID(tokenString string) (int64, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
