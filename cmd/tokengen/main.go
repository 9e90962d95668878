// Package main generates test tokens for local development. Tokens are signed
// with the dev key ring and will NOT verify against a production deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatehouse/internal/token"
	id "gatehouse/pkg/domain"
)

const (
	// Matches config.FromEnv when JWT_SIGNING_KEYS is not set.
	devSigningKey = "dev-secret-key-change-in-production"
	devKeyID      = "dev"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

type tokenOutput struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresIn    string         `json:"expires_in"`
	Claims       map[string]any `json:"claims,omitempty"`
	Usage        string         `json:"usage"`
}

func main() {
	pairCmd := flag.NewFlagSet("pair", flag.ExitOnError)
	pairPrincipal := pairCmd.String("principal-id", "", "Principal ID (UUID). Generated if empty.")
	pairSession := pairCmd.String("session-id", "", "Session ID (UUID). Generated if empty.")
	pairScopes := pairCmd.String("scopes", "read", "Comma-separated scopes")
	pairRotation := pairCmd.Int("rotation", 1, "Refresh rotation counter")
	pairTTL := pairCmd.Duration("ttl", defaultAccessTTL, "Access token time-to-live")
	pairKey := pairCmd.String("key", devSigningKey, "HMAC signing secret")
	pairJSON := pairCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "pair":
		pairCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		generatePair(*pairPrincipal, *pairSession, *pairScopes, *pairRotation, *pairTTL, *pairKey, *pairJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate test token pairs for gatehouse

WARNING: Tokens use the dev signing key and will NOT verify in production.

Usage:
  tokengen pair [flags]

Examples:
  # Generate a pair with fresh IDs
  tokengen pair

  # Pin the principal and session
  tokengen pair -principal-id "550e8400-e29b-41d4-a716-446655440000" -session-id "..."

  # Output as JSON
  tokengen pair -json

Use "tokengen pair -h" for flag details.`)
}

func generatePair(principalID, sessionID, scopes string, rotation int, ttl time.Duration, key string, jsonOutput bool) {
	pid := id.PrincipalID(parseOrGenerateUUID(principalID, "principal-id"))
	sid := id.SessionID(parseOrGenerateUUID(sessionID, "session-id"))
	scopeList := parseScopes(scopes)

	svc, err := token.New(token.Config{
		Keys:         map[string]string{devKeyID: key},
		CurrentKeyID: devKeyID,
		AccessTTL:    ttl,
		RefreshTTL:   defaultRefreshTTL,
		ClockSkew:    5 * time.Second,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building token service: %v\n", err)
		os.Exit(1)
	}

	pair, err := svc.IssuePair(context.Background(), pid, sid, scopeList, rotation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating tokens: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresIn:    ttl.String(),
			Claims: map[string]any{
				"principal_id": pid.String(),
				"session_id":   sid.String(),
				"scopes":       scopeList,
				"rotation":     rotation,
				"access_jti":   pair.AccessTokenJTI,
				"refresh_jti":  pair.RefreshTokenJTI,
			},
			Usage: "Authorization: Bearer <access_token>",
		})
		return
	}

	fmt.Println("Token Pair")
	fmt.Println("==========")
	fmt.Printf("Principal ID: %s\n", pid)
	fmt.Printf("Session ID:   %s\n", sid)
	fmt.Printf("Scopes:       %v\n", scopeList)
	fmt.Printf("Rotation:     %d\n", rotation)
	fmt.Printf("Expires In:   %s\n", ttl)
	fmt.Println()
	fmt.Println("Access Token:")
	fmt.Println(pair.AccessToken)
	fmt.Println()
	fmt.Println("Refresh Token:")
	fmt.Println(pair.RefreshToken)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <access_token>\" http://localhost:8080/...")
}

func parseOrGenerateUUID(input, fieldName string) uuid.UUID {
	if input == "" {
		return uuid.New()
	}
	parsed, err := uuid.Parse(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s UUID: %s\n", fieldName, input)
		os.Exit(1)
	}
	return parsed
}

func parseScopes(scopes string) []string {
	if scopes == "" {
		return nil
	}
	parts := strings.Split(scopes, ",")
	result := make([]string, 0, len(parts))
	for _, s := range parts {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
