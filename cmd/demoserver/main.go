package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/programme-lv/extserver/demosrv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()

	secret := os.Getenv("DEMO_SECRET")
	if secret == "" {
		slog.Error("DEMO_SECRET is not set")
		os.Exit(1)
	}

	cfg := demosrv.Config{
		Secret:           secret,
		HashAlgorithm:    os.Getenv("DEMO_HASH_ALGORITHM"),
		RequireGroupInfo: os.Getenv("DEMO_REQUIRE_GROUPINFO") == "true",
	}

	if jwtKey := os.Getenv("DEMO_JWT_KEY"); jwtKey != "" {
		clientSecret := os.Getenv("DEMO_CLIENT_SECRET")
		hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("could not hash client secret", "err", err)
			os.Exit(1)
		}
		cfg.RequireBearer = true
		cfg.JWTKey = []byte(jwtKey)
		cfg.ClientID = os.Getenv("DEMO_CLIENT_ID")
		cfg.ClientSecretHash = string(hash)
	}

	var blobs demosrv.BlobStore
	if bucket := os.Getenv("DEMO_S3_BUCKET"); bucket != "" {
		s3Store, err := demosrv.NewS3Store(os.Getenv("DEMO_S3_REGION"), bucket)
		if err != nil {
			slog.Error("could not init S3 store", "err", err)
			os.Exit(1)
		}
		blobs = s3Store
	} else {
		dir := os.Getenv("DEMO_UPLOAD_DIR")
		if dir == "" {
			dir = "uploads"
		}
		blobs = demosrv.NewDirStore(dir)
	}

	server := demosrv.NewServer(cfg, blobs)

	address := os.Getenv("DEMO_ADDRESS")
	if address == "" {
		address = ":8080"
	}
	log.Printf("Starting demo external server on %s", address)
	err := server.Start(address)
	log.Printf("Server stopped with error: %v", err)
}
