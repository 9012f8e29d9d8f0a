package config

import (
	"os"
	"time"

	"github.com/sandersonthethird/meetrec/utils"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
)

// all config will be loaded from environment variables
type Config struct {
	AnonymousLogin bool
	Port           string

	RecordingsDir string
	DatabaseDir   string

	// empty means automatic encoder resolution
	EncoderPath string

	FinalizeTimeout time.Duration
	MinFreeDiskMB   uint64

	Username     string
	PasswordHash string
	JwtSecret    string
}

func provider() (*Config, error) {

	password := os.Getenv("PASSWORD")
	username := os.Getenv("USERNAME")

	var passwordHash []byte
	var err error

	if password != "" && username != "" {
		passwordHash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	} else {
		passwordHash, err = []byte{}, nil
	}

	if err != nil {
		return nil, err
	}

	return &Config{
		AnonymousLogin:  os.Getenv("ANONYMOUS_LOGIN") == "true",
		Port:            utils.EmptyOrElse(os.Getenv("PORT"), "8080"),
		RecordingsDir:   utils.EmptyOrElse(os.Getenv("RECORDINGS_DIR"), "records"),
		DatabaseDir:     utils.EmptyOrElse(os.Getenv("DATABASE_DIR"), "data"),
		EncoderPath:     os.Getenv("FFMPEG_PATH"),
		FinalizeTimeout: time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("FINALIZE_TIMEOUT_SECONDS"), "20"))) * time.Second,
		MinFreeDiskMB:   uint64(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("MIN_FREE_DISK_MB"), "200"))),
		Username:        username,
		PasswordHash:    string(passwordHash),
		JwtSecret:       utils.EmptyOrElse(os.Getenv("JWT_SECRET"), "meetrec_secret"),
	}, nil
}

var Module = fx.Module("config", fx.Provide(provider))
