package lock

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/ixado-dev/ixado/internal/model"
)

// lockClaims embeds the model.LockRecord fields directly as JWT claims,
// so the signed token itself carries the full record and needs no
// companion file.
type lockClaims struct {
	PID         int             `json:"pid"`
	Owner       model.LockOwner `json:"owner"`
	ProjectName string          `json:"projectName"`
	AcquiredAt  string          `json:"acquiredAt"`
	jwt.RegisteredClaims
}

// SignedLockCodec encodes a model.LockRecord as an HMAC-signed JWT, so a
// lock file edited outside of this package (to forge a different pid, for
// example) fails signature verification instead of being silently
// trusted.
type SignedLockCodec struct {
	Secret []byte
}

func (c SignedLockCodec) Encode(record model.LockRecord) ([]byte, error) {
	issuedAt := time.Now()
	if parsed, err := time.Parse(time.RFC3339, record.AcquiredAt); err == nil {
		issuedAt = parsed
	}

	claims := lockClaims{
		PID:         record.PID,
		Owner:       record.Owner,
		ProjectName: record.ProjectName,
		AcquiredAt:  record.AcquiredAt,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign lock record: %w", err)
	}
	return []byte(signed), nil
}

func (c SignedLockCodec) Decode(data []byte) (model.LockRecord, error) {
	var claims lockClaims
	_, err := jwt.ParseWithClaims(string(data), &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return c.Secret, nil
	})
	if err != nil {
		return model.LockRecord{}, fmt.Errorf("verify lock record signature: %w", err)
	}

	return model.LockRecord{
		PID:         claims.PID,
		Owner:       claims.Owner,
		ProjectName: claims.ProjectName,
		AcquiredAt:  claims.AcquiredAt,
	}, nil
}
