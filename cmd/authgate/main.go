// The authgate command runs the authentication gateway: provider login
// flows, session token issuance, JWKS publishing, and key rotation.
//
// Configuration comes from authgate.yaml and AG__-prefixed environment
// variables, e.g.:
//
//	AG__MODE=production \
//	AG__ADDRESS=https://auth.example.com \
//	AG__PROVIDERS__GOOGLE__ID=... \
//	AG__PROVIDERS__GOOGLE__SECRET=... \
//	AG__KEYS__SLOT_1__PRIVATE="$(cat key.pem)" \
//	AG__KEYS__SLOT_1__PUBLIC="$(cat key.pub.pem)" \
//	authgate
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/authgate/authgate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := authgate.FromConfig(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "authgate:", err)
		os.Exit(1)
	}

	if err := s.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "authgate:", err)
		os.Exit(1)
	}
}
