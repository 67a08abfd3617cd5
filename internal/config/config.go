package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds to an
// environment variable. Secrets are read once at boot and never mutated
// afterwards; handlers receive the loaded Config by value.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTAccessSecret  string // secret used to sign access tokens
	JWTRefreshSecret string // secret used to sign refresh tokens (must differ)
	AccessTTLMin     int    // access token time-to-live in minutes
	RefreshTTLDays   int    // refresh token time-to-live in days
	BcryptCost       int    // bcrypt cost for password hashing

	S3Endpoint  string // object store base endpoint (S3-compatible)
	S3Bucket    string // bucket holding bundle objects
	S3Region    string // region passed to the signer
	S3AccessKey string // static access key
	S3SecretKey string // static secret key

	BootstrapRootEmail    string // operator-root account created at boot
	BootstrapRootPassword string // initial password for the bootstrap account

	GeoProviderURL string // optional IP geolocation endpoint; empty disables lookups

	ProxyHost string // egress proxy host seeded into the proxy catalog
	ProxyPort string // egress proxy port
	ProxyUser string // egress proxy username (optional)
	ProxyPass string // egress proxy password (optional)
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values cause
// the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTAccessSecret:  must("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
		AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:   mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:       mustInt("BCRYPT_COST"),

		S3Endpoint:  must("S3_ENDPOINT"),
		S3Bucket:    must("S3_BUCKET"),
		S3Region:    must("S3_REGION"),
		S3AccessKey: must("S3_ACCESS_KEY"),
		S3SecretKey: must("S3_SECRET_KEY"),

		BootstrapRootEmail:    must("BOOTSTRAP_ROOT_EMAIL"),
		BootstrapRootPassword: must("BOOTSTRAP_ROOT_PASSWORD"),

		GeoProviderURL: os.Getenv("GEO_PROVIDER_URL"),

		ProxyHost: os.Getenv("PROXY_HOST"),
		ProxyPort: os.Getenv("PROXY_PORT"),
		ProxyUser: os.Getenv("PROXY_USER"),
		ProxyPass: os.Getenv("PROXY_PASS"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
