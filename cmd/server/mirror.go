package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"quantumhub.game/internal/persistence/r2s3"
)

// setupLogMirror builds the offsite journey-log mirror from QH_R2_* env vars.
// Returns nil when mirroring is not enabled.
func setupLogMirror(dataDir string, logger *log.Logger) (*r2s3.Mirror, error) {
	if !envBool("QH_R2_MIRROR", false) {
		return nil, nil
	}

	endpoint := strings.TrimSpace(os.Getenv("QH_R2_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("QH_R2_BUCKET"))
	keyID := strings.TrimSpace(os.Getenv("QH_R2_ACCESS_KEY_ID"))
	secret := strings.TrimSpace(os.Getenv("QH_R2_SECRET_ACCESS_KEY"))
	prefix := strings.TrimSpace(os.Getenv("QH_R2_PREFIX"))

	if endpoint == "" || bucket == "" || keyID == "" || secret == "" {
		return nil, fmt.Errorf("QH_R2_MIRROR=true but QH_R2_ENDPOINT/QH_R2_BUCKET/QH_R2_ACCESS_KEY_ID/QH_R2_SECRET_ACCESS_KEY are not fully set")
	}

	client, err := r2s3.New(endpoint, bucket, keyID, secret)
	if err != nil {
		return nil, err
	}

	workers := envInt("QH_R2_UPLOAD_WORKERS", 2)
	mirror := r2s3.NewMirror(client, dataDir, prefix, workers, logger)
	logger.Printf("journey log mirror enabled bucket=%s prefix=%s workers=%d", bucket, prefix, workers)
	return mirror, nil
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
