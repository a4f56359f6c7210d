// Command devtoken mints an HS256 bearer token for local testing against a
// server running with AUTH_MODE=jwt and a shared JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"menu_translator/auth_system/settings"
	"menu_translator/auth_system/token"

	"github.com/joho/godotenv"
)

func main() {
	subject := flag.String("sub", "dev-user", "token subject (user id)")
	ttl := flag.Duration("ttl", settings.DevTokenTTL, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("[devtoken] JWT_SECRET is not set")
	}

	signed, err := token.IssueToken(secret, *subject, *ttl)
	if err != nil {
		log.Fatalf("[devtoken] sign token: %v", err)
	}
	fmt.Println(signed)
}
