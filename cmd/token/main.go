package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/video-analitics/queuesorter/internal/api"
	"github.com/video-analitics/queuesorter/internal/config"
	"github.com/video-analitics/queuesorter/pkg/logger"
)

func main() {
	subject := flag.String("sub", "", "Token subject, e.g. the caller's name")
	queues := flag.String("queues", "", "Comma separated queues the token covers (empty means all)")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	logger.Init(logger.IsDev())
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		logger.Log.Fatal().Msg("JWT_SECRET is not set")
	}
	if *subject == "" {
		logger.Log.Fatal().Msg("-sub is required")
	}

	var scope []string
	for _, q := range strings.Split(*queues, ",") {
		if q = strings.TrimSpace(q); q != "" {
			scope = append(scope, q)
		}
	}

	token, err := api.IssueToken(cfg.JWTSecret, *subject, scope, *ttl)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("sign token")
	}

	fmt.Fprintln(os.Stdout, token)
}
