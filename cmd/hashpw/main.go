package main

import (
	"fmt"
	"os"

	"github.com/fxp-labs/support-bridge/internal/auth"
	"github.com/fxp-labs/support-bridge/internal/config"
)

// hashpw generates the bcrypt hash for AUTH_OPERATOR_PASSWORD_HASH.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	hashed, err := auth.HashPassword(os.Args[1], cfg.Auth.BcryptCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hashed)
}
