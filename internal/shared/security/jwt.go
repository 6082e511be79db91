package security

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrJWTSecretMissing = errors.New("JWT_SECRET is not set")

const (
	issuer     = "umpire"
	defaultTTL = 7 * 24 * time.Hour
	// 多节点部署时容忍的时钟偏差
	clockSkew = 5 * time.Second
)

// Claims 是一个对局会话的凭证：sub 为会话 id，aud 为对局 id。
// 断线后凭它恢复同一组玩家的控制权。
type Claims struct {
	Players []int `json:"players"`
	jwt.RegisteredClaims
}

// GameID 从 aud 解析，格式不对时返回 0。
func (c *Claims) GameID() int64 {
	if len(c.Audience) != 1 {
		return 0
	}
	id, _ := strconv.ParseInt(c.Audience[0], 10, 64)
	return id
}

func (c *Claims) SessionID() string {
	return c.Subject
}

func secret() ([]byte, error) {
	s := os.Getenv("JWT_SECRET")
	if s == "" {
		return nil, ErrJWTSecretMissing
	}
	return []byte(s), nil
}

// IssueSessionToken ttl<=0 时默认 7 天。
func IssueSessionToken(gameID int64, sessionID string, players []int, ttl time.Duration) (string, error) {
	key, err := secret()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Players: append([]int(nil), players...),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sessionID,
			Audience:  jwt.ClaimStrings{strconv.FormatInt(gameID, 10)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString(key)
}

// ParseSessionToken 校验签名、签发方和过期时间。
func ParseSessionToken(raw string) (*Claims, error) {
	key, err := secret()
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	_, err = jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, err
	}
	if claims.SessionID() == "" || claims.GameID() == 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
