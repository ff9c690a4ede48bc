// Command contas-token signs a session token for local development, with
// the same secret the server verifies. Production tokens come from the
// identity provider.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"contas/internal/auth"
)

func main() {
	_ = godotenv.Load()

	owner := flag.String("owner", "", "owner id placed in the sub claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *owner == "" {
		fmt.Fprintln(os.Stderr, "usage: contas-token -owner <id> [-ttl 24h]")
		os.Exit(2)
	}
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "SESSION_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.NewVerifier(secret, os.Getenv("SESSION_ISSUER")).Issue(*owner, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
