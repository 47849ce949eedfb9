// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"log"
	"time"

	"zt-totp/backend/internal/config"
	"zt-totp/backend/internal/db"
	devicerepo "zt-totp/backend/internal/device/repository"
	devicekeyrepo "zt-totp/backend/internal/devicekey/repository"
	"zt-totp/backend/internal/enrollment"
	rprepo "zt-totp/backend/internal/relyingparty/repository"
	"zt-totp/backend/internal/security"
	"zt-totp/backend/internal/totp"
	totprepo "zt-totp/backend/internal/totp/repository"
	userrepo "zt-totp/backend/internal/user/repository"
)

const (
	devUserEmail = "dev@example.com"
	devRPID      = "dev-rp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; set it in the environment or a .env file")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	masterKey, err := cfg.MasterKeyBytes()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	vault, err := security.NewVault(masterKey)
	if err != nil {
		log.Fatalf("vault: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := userrepo.NewPostgresRepository(conn)
	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists, nothing to do", devUserEmail)
		return
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("seed: generate key: %v", err)
	}

	enrollService := enrollment.NewService(
		users,
		devicerepo.NewPostgresRepository(conn),
		rprepo.NewPostgresRepository(conn),
		devicekeyrepo.NewPostgresRepository(conn),
	)
	out, err := enrollService.Enroll(ctx, enrollment.Input{
		Email:         devUserEmail,
		DeviceLabel:   "dev phone",
		Platform:      "android",
		RPID:          devRPID,
		RPDisplayName: "Dev Relying Party",
		KeyType:       security.KeyTypeEd25519,
		PublicKey:     base64.StdEncoding.EncodeToString(pub),
	})
	if err != nil {
		log.Fatalf("seed: enroll: %v", err)
	}

	totpService := totp.NewService(totprepo.NewPostgresRepository(conn), users, vault, cfg.RecoveryPepper)
	reg, err := totpService.Register(ctx, out.User.ID, devRPID, devUserEmail, "zt-totp-dev")
	if err != nil {
		log.Fatalf("seed: totp register: %v", err)
	}

	log.Printf("seed: user=%s device=%s rp=%s", out.User.ID, out.Device.ID, out.RelyingParty.ID)
	log.Printf("seed: device private key (base64, keep local): %s",
		base64.StdEncoding.EncodeToString(priv))
	log.Printf("seed: otpauth URI: %s", reg.OtpauthURI)
	log.Printf("seed: recovery codes: %v", reg.RecoveryCodes)
}
