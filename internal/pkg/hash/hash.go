package hash

import (
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
)

// Module 提供 Fx 模块
var Module = fx.Module("hash",
	fx.Provide(NewBcryptHasher),
)

// Hasher 凭证哈希协作方, 哈希算法对业务层不可见
type Hasher interface {
	Hash(raw string) (string, error)
	Compare(raw, hashed string) bool
}

type bcryptHasher struct {
	cost int
}

func NewBcryptHasher() Hasher {
	return &bcryptHasher{cost: bcrypt.DefaultCost}
}

func (h *bcryptHasher) Hash(raw string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h *bcryptHasher) Compare(raw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(raw)) == nil
}
