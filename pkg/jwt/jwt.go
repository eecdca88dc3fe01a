package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"conduzauto/backend/config"
)

// 凭证校验失败的四种情形，所有受保护路由共用
var (
	ErrTokenMissing   = errors.New("缺少 token")
	ErrTokenMalformed = errors.New("token 格式无效")
	ErrTokenExpired   = errors.New("token 已过期")
	ErrTokenSignature = errors.New("token 签名无效")
)

// Identity 校验通过后的调用方身份
// SubjectID 是全系统唯一的身份表示，下游鉴权只认这一字段
type Identity struct {
	SubjectID string
	TokenID   string
	ExpiresAt time.Time
}

// Validator 凭证校验能力
type Validator interface {
	Verify(token string) (*Identity, error)
}

// Manager JWT 管理器（签发 + 校验）
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

var _ Validator = (*Manager)(nil)

// NewManager 创建 JWT 管理器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// GenerateToken 为主体签发 Token，仅携带 sub 一个身份声明
func (m *Manager) GenerateToken(subjectID string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := jwtv5.RegisteredClaims{
		Subject:   subjectID,
		ID:        uuid.New().String(),
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(expiresAt),
		Issuer:    m.issuer,
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify 解析并验证 Token，返回规范化的主体标识
func (m *Manager) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	var claims jwtv5.RegisteredClaims
	token, err := jwtv5.ParseWithClaims(tokenString, &claims, func(t *jwtv5.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(m.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwtv5.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwtv5.ErrTokenSignatureInvalid), errors.Is(err, jwtv5.ErrTokenUnverifiable):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	return &Identity{
		SubjectID: claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
