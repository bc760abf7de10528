package config

import (
	"github.com/joho/godotenv"
	"os"
	"strconv"
)

const (
	defaultMongoURL     = "mongodb://mongodb:27017"
	defaultDatabaseName = "time_tracking_db"
	defaultCatalogPath  = "/var/opentracker/data/opentracker.db"
	defaultListenAddr   = ":8000"
	defaultWorkers      = 4
)

type Config struct {
	// SecretKey derives the key used to encrypt storage credentials before they are persisted.
	// Changing it makes previously stored credentials unreadable.
	SecretKey string

	// AccessKey is the master access key to the server. Must be kept safe and secure!
	AccessKey string

	ServerSSLCertFile, ServerSSLKeyFile string

	// MongoURL and DatabaseName point at the database that gets dumped and restored
	MongoURL     string
	DatabaseName string

	// DatabasePath is the sqlite file holding the backup catalog and settings
	DatabasePath string

	ListenAddr string
	LogMode    string

	// TempDir is where dump archives are staged. Empty means the OS default.
	TempDir string

	// Workers bounds how many dump/transfer operations run at the same time
	Workers int
}

// New reads the configuration from the environment, after loading an optional .env file.
func New() Config {
	_ = godotenv.Load()

	return Config{
		SecretKey:         os.Getenv("SECRET_KEY"),
		AccessKey:         os.Getenv("ACCESS_KEY"),
		ServerSSLCertFile: os.Getenv("SERVER_SSL_CERT_FILE"),
		ServerSSLKeyFile:  os.Getenv("SERVER_SSL_KEY_FILE"),
		MongoURL:          firstOf(defaultMongoURL, os.Getenv("MONGODB_URL"), os.Getenv("MONGO_URL")),
		DatabaseName:      firstOf(defaultDatabaseName, os.Getenv("DATABASE_NAME"), os.Getenv("DB_NAME")),
		DatabasePath:      firstOf(defaultCatalogPath, os.Getenv("CATALOG_DATABASE_PATH")),
		ListenAddr:        firstOf(defaultListenAddr, os.Getenv("LISTEN_ADDR")),
		LogMode:           firstOf("development", os.Getenv("LOG_MODE")),
		TempDir:           os.Getenv("BACKUP_TEMP_DIR"),
		Workers:           intOr(os.Getenv("BACKUP_WORKERS"), defaultWorkers),
	}
}

func (c Config) HasTLSConfig() bool {
	return c.ServerSSLCertFile != "" && c.ServerSSLKeyFile != ""
}

func firstOf(fallback string, values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return fallback
}

func intOr(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
