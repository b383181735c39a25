// Command sessionctl mints bearer tokens for exercising the session service
// locally.
//
//	sessionctl -sub alice -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"sessionlimit/internal/identity"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	sub := flag.String("sub", "", "user id to put in the token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	issuer := flag.String("issuer", envOr("ISSUER", "http://localhost:8081"), "token issuer")
	flag.Parse()

	if *sub == "" {
		fmt.Fprintln(os.Stderr, "sessionctl: -sub is required")
		flag.Usage()
		os.Exit(2)
	}

	signer, err := identity.NewSigner(os.Getenv("JWT_SECRET"), *issuer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sessionctl: %v (set JWT_SECRET)\n", err)
		os.Exit(1)
	}
	tok, err := signer.Sign(*sub, *ttl, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sessionctl: sign: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
