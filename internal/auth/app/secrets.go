package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/tokenauth/pkg/cryptox"
	"github.com/aussiebroadwan/tokenauth/pkg/jwtx"
)

// secretFileBytes is the size of a generated secret before encoding.
const secretFileBytes = 48

// InitCodec builds the HMAC codec for locally issued tokens.
//
// The secret comes from AUTH_SECRET_KEY when set. Otherwise it is read from
// AUTH_SECRET_FILE, which is generated on first start. Every instance behind
// a load balancer must share the same secret.
func InitCodec(cfg Config, logger *slog.Logger) (*jwtx.HMAC, error) {
	secret := []byte(cfg.SecretKey)
	source := "env"

	if len(secret) == 0 {
		raw, err := cryptox.LoadOrCreateSecret(cfg.SecretFile, secretFileBytes)
		if err != nil {
			return nil, fmt.Errorf("load secret file: %w", err)
		}
		secret = raw
		source = "file"
	}

	codec, err := jwtx.NewHMAC(cfg.Algorithm, secret)
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	logger.Info("token codec ready", "algorithm", codec.Alg(), "secret_source", source)
	return codec, nil
}
