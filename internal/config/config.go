package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	HTTPPort  string `json:"http_port"`
	HTTPSPort string `json:"https_port"`
	Domain    string `json:"domain"`

	TURNPort     int    `json:"turn_port"`
	TURNRealm    string `json:"turn_realm"`
	TURNPublicIP string `json:"turn_public_ip"`

	// DatabaseDSN defaults to ":memory:"; call history is process-lifetime
	// state unless an operator points it at a file.
	DatabaseDSN string `json:"database_dsn"`

	LogLevel string `json:"log_level"`

	// HTTP-only mode, for running behind a fronting proxy.
	HTTPOnly    bool   `json:"-"`
	FrontendURI string `json:"frontend_uri"`

	VAPIDKeys *VAPIDKeys `json:"-"`
}

// VAPIDKeys sign Web Push requests. PublicKey is the uncompressed 65-byte
// P-256 point, PrivateKey the raw 32-byte scalar, both base64url.
type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Load reads config.json next to the executable (if present), applies
// env defaults for missing fields and flag overrides on top.
func Load(httpOnly *bool) *Config {
	cfg := &Config{}

	if data, err := os.ReadFile(configFilePath()); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Printf("Warning: cannot parse config.json: %v\n", err)
			cfg = &Config{}
		}
	}

	if cfg.HTTPPort == "" {
		cfg.HTTPPort = getEnv("HTTP_PORT", "8080")
	}
	if cfg.HTTPSPort == "" {
		cfg.HTTPSPort = getEnv("HTTPS_PORT", "8443")
	}
	if cfg.Domain == "" {
		cfg.Domain = getEnv("DOMAIN", "localhost")
	}
	if cfg.TURNPort == 0 {
		cfg.TURNPort = getEnvInt("TURN_PORT", 3478)
	}
	if cfg.TURNRealm == "" {
		cfg.TURNRealm = getEnv("TURN_REALM", "voicebridge")
	}
	if cfg.TURNPublicIP == "" {
		cfg.TURNPublicIP = os.Getenv("TURN_PUBLIC_IP")
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = getEnv("DATABASE_DSN", ":memory:")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	}
	if cfg.FrontendURI == "" {
		cfg.FrontendURI = os.Getenv("FRONTEND_URI")
	}

	if httpOnly != nil {
		cfg.HTTPOnly = *httpOnly
	}

	cfg.VAPIDKeys = loadVAPIDKeys()

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func configFilePath() string {
	execPath, err := os.Executable()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(filepath.Dir(execPath), "config.json")
}

func keysDirectory() string {
	execPath, err := os.Executable()
	if err != nil {
		return "keys"
	}
	return filepath.Join(filepath.Dir(execPath), "keys")
}

// loadVAPIDKeys resolves keys from the environment, then the keys
// directory, and generates a fresh pair as a last resort. Generated keys
// are persisted so push subscriptions survive restarts.
func loadVAPIDKeys() *VAPIDKeys {
	subject := getEnv("VAPID_SUBJECT", "mailto:admin@voicebridge.app")

	publicKey := os.Getenv("VAPID_PUBLIC_KEY")
	privateKey := os.Getenv("VAPID_PRIVATE_KEY")
	if publicKey != "" && privateKey != "" {
		return &VAPIDKeys{PublicKey: publicKey, PrivateKey: privateKey, Subject: subject}
	}

	keysDir := keysDirectory()
	publicKeyFile := filepath.Join(keysDir, "vapid-public.key")
	privateKeyFile := filepath.Join(keysDir, "vapid-private.key")

	if publicKeyData, err := os.ReadFile(publicKeyFile); err == nil {
		if privateKeyData, err := os.ReadFile(privateKeyFile); err == nil {
			publicKey = strings.TrimSpace(string(publicKeyData))
			privateKey = strings.TrimSpace(string(privateKeyData))
			// The webpush library wants the raw 32-byte scalar; reject
			// anything else (e.g. keys saved in PKCS#8 by older builds).
			if decoded, err := base64.RawURLEncoding.DecodeString(privateKey); err == nil && len(decoded) == 32 {
				return &VAPIDKeys{PublicKey: publicKey, PrivateKey: privateKey, Subject: subject}
			}
			fmt.Println("Warning: stored VAPID private key has unexpected format, regenerating")
		}
	}

	publicKey, privateKey, err := generateVAPIDKeys()
	if err != nil {
		panic("failed to generate VAPID keys: " + err.Error())
	}

	if err := os.MkdirAll(keysDir, 0700); err == nil {
		_ = os.WriteFile(publicKeyFile, []byte(publicKey), 0600)
		_ = os.WriteFile(privateKeyFile, []byte(privateKey), 0600)
	}

	return &VAPIDKeys{PublicKey: publicKey, PrivateKey: privateKey, Subject: subject}
}

func generateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", err
	}

	// Uncompressed point: 0x04 || X || Y.
	publicKeyBytes := make([]byte, 65)
	publicKeyBytes[0] = 0x04
	key.PublicKey.X.FillBytes(publicKeyBytes[1:33])
	key.PublicKey.Y.FillBytes(publicKeyBytes[33:65])

	privateKeyBytes := make([]byte, 32)
	key.D.FillBytes(privateKeyBytes)

	return base64.RawURLEncoding.EncodeToString(publicKeyBytes),
		base64.RawURLEncoding.EncodeToString(privateKeyBytes),
		nil
}
