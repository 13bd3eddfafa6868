// Command devtoken prints a bearer token for local testing against the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"admissionengine/config"
	"admissionengine/internal/adapters/auth"
)

func main() {
	uid := flag.String("uid", "", "subject uid")
	roles := flag.String("roles", "", "comma-separated roles")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	logger := config.NewLogger()
	if *uid == "" {
		logger.Error("devtoken: -uid is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("devtoken: load config", "error", err)
		os.Exit(1)
	}
	if cfg.Environment == "production" {
		logger.Error("devtoken: refusing to issue tokens in production")
		os.Exit(1)
	}

	var roleList []string
	if *roles != "" {
		roleList = strings.Split(*roles, ",")
	}
	token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(*uid, roleList, *ttl)
	if err != nil {
		logger.Error("devtoken: issue", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
