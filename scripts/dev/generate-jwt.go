// Generates a signed token for exercising the gateway locally.
//
// Usage:
//
//	go run scripts/dev/generate-jwt.go -secret change-me-in-production -sub user-1 -role admin
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	var (
		secret = flag.String("secret", "change-me-in-production", "HMAC signing secret (must match gateway config)")
		sub    = flag.String("sub", "dev-user", "token subject")
		role   = flag.String("role", "user", "role claim")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  *sub,
		"role": *role,
		"iat":  now.Unix(),
		"exp":  now.Add(*ttl).Unix(),
	})

	signed, err := token.SignedString([]byte(*secret))
	if err != nil {
		log.Fatalf("signing token: %v", err)
	}

	fmt.Println(signed)
	fmt.Printf("\ncurl -H \"Authorization: Bearer %s\" http://localhost:8000/users/me\n", signed)
}
