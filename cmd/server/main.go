package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zt-totp/backend/internal/audit"
	audithandler "zt-totp/backend/internal/audit/handler"
	auditrepo "zt-totp/backend/internal/audit/repository"
	"zt-totp/backend/internal/challenge"
	challengerepo "zt-totp/backend/internal/challenge/repository"
	"zt-totp/backend/internal/config"
	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/dev"
	devicehandler "zt-totp/backend/internal/device/handler"
	devicerepo "zt-totp/backend/internal/device/repository"
	"zt-totp/backend/internal/devicekey"
	devicekeyhandler "zt-totp/backend/internal/devicekey/handler"
	devicekeyrepo "zt-totp/backend/internal/devicekey/repository"
	"zt-totp/backend/internal/enrollment"
	enrollmenthandler "zt-totp/backend/internal/enrollment/handler"
	"zt-totp/backend/internal/login"
	loginhandler "zt-totp/backend/internal/login/handler"
	loginrepo "zt-totp/backend/internal/login/repository"
	rphandler "zt-totp/backend/internal/relyingparty/handler"
	rprepo "zt-totp/backend/internal/relyingparty/repository"
	"zt-totp/backend/internal/security"
	"zt-totp/backend/internal/server"
	"zt-totp/backend/internal/telemetry"
	"zt-totp/backend/internal/telemetry/producer"
	"zt-totp/backend/internal/totp"
	totphandler "zt-totp/backend/internal/totp/handler"
	totprepo "zt-totp/backend/internal/totp/repository"
	userhandler "zt-totp/backend/internal/user/handler"
	userrepo "zt-totp/backend/internal/user/repository"
	"zt-totp/backend/internal/verification"
	verificationhandler "zt-totp/backend/internal/verification/handler"
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

	users := userrepo.NewPostgresRepository(conn)
	devices := devicerepo.NewPostgresRepository(conn)
	rps := rprepo.NewPostgresRepository(conn)
	keys := devicekeyrepo.NewPostgresRepository(conn)
	secrets := totprepo.NewPostgresRepository(conn)
	challenges := challengerepo.NewPostgresRepository(conn)
	logins := loginrepo.NewPostgresRepository(conn)
	auditLogs := auditrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditLogs)

	var emitter telemetry.EventEmitter
	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	if kafkaProducer != nil {
		emitter = kafkaProducer
		defer kafkaProducer.Close()
		log.Printf("telemetry: emitting to kafka topic %s", cfg.TelemetryKafkaTopic)
	}

	var assertions *security.AssertionProvider
	if cfg.AssertionPrivateKey != "" {
		priv, err := security.ParsePrivateKey(cfg.AssertionPrivateKey)
		if err != nil {
			log.Fatalf("assertion key: %v", err)
		}
		pub := priv.Public()
		if cfg.AssertionPublicKey != "" {
			pub, err = security.ParsePublicKey(cfg.AssertionPublicKey)
			if err != nil {
				log.Fatalf("assertion key: %v", err)
			}
		}
		assertions = security.NewAssertionProvider(priv, pub,
			cfg.AssertionIssuer, cfg.AssertionAudience, cfg.AssertionTTLDuration())
		log.Printf("login assertions enabled alg=%s", security.KeyAlg(pub))
	}

	totpService := totp.NewService(secrets, users, vault, cfg.RecoveryPepper)
	challengeService := challenge.NewService(challenges, cfg.ChallengeTTLDuration())
	verifyService := verification.NewService(rps, keys, secrets, challenges, vault)
	rotateService := devicekey.NewService(keys, rps)
	enrollService := enrollment.NewService(users, devices, rps, keys)
	loginService := login.NewService(logins, users, devices, rps, keys, secrets,
		totpService, vault, cfg.OTPPepper, cfg.LoginTTLDuration())

	deps := server.Deps{
		DB:           conn,
		Users:        userhandler.New(users),
		Devices:      devicehandler.New(devices),
		RPs:          rphandler.New(rps),
		DeviceKeys:   devicekeyhandler.New(keys, rotateService, auditLogger, emitter),
		Enrollment:   enrollmenthandler.New(enrollService),
		TOTP:         totphandler.New(totpService, auditLogger, emitter),
		Verification: verificationhandler.New(challengeService, verifyService, auditLogger, emitter),
		Login:        loginhandler.New(loginService, assertions, auditLogger, emitter),
		Audit:        audithandler.New(auditLogs),
	}
	// Config rejects the debug flag in production, so this gate only ever
	// admits non-production processes.
	if cfg.DebugEndpoints && cfg.Env != "production" {
		deps.Debug = dev.New(secrets, keys, rps, vault)
		log.Println("debug endpoints enabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Periodically mark overdue pending logins denied/expired so the pending
	// lookup stays small. Read paths enforce expiry on their own.
	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-pruneCtx.Done():
				return
			case <-ticker.C:
				loginService.PruneExpired(pruneCtx)
			}
		}
	}()

	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Give in-flight async telemetry emits time to complete.
	if emitter != nil {
		time.Sleep(telemetry.ShutdownDrainDuration)
	}
	log.Println("http server stopped")
}
