package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokengen prints an HS256 access token accepted by the twofa server
func main() {
	secret := flag.String("secret", "very-secure-jwt-secret", "Secret key for signing the token")
	issuer := flag.String("issuer", "simple-idm", "Issuer of the token")
	subject := flag.String("subject", "", "User ID, a random one when empty")
	username := flag.String("username", "", "Username shown in authenticator apps")
	roles := flag.String("roles", "", "Comma separated roles, e.g. admin")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	outputFormat := flag.String("format", "compact", "Output format: compact or debug")
	flag.Parse()

	if *subject == "" {
		*subject = uuid.New().String()
	}

	now := time.Now()
	extraClaims := map[string]interface{}{}
	if *username != "" {
		extraClaims["username"] = *username
	}
	if *roles != "" {
		extraClaims["roles"] = splitRoles(*roles)
	}

	claims := jwt.MapClaims{
		"sub":          *subject,
		"user_id":      *subject,
		"iss":          *issuer,
		"iat":          now.Unix(),
		"exp":          now.Add(*expiry).Unix(),
		"jti":          uuid.New().String(),
		"extra_claims": extraClaims,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(*secret))
	if err != nil {
		slog.Error("Failed to sign token", "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "debug":
		parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(*secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			slog.Error("Failed to parse generated token", "err", err)
			fmt.Fprintf(os.Stderr, "Error: Failed to parse generated token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("=== Token Information ===\n")
		fmt.Printf("Token: %s\n\n", tokenStr)
		fmt.Printf("=== Token Header ===\n")
		headerJSON, _ := json.MarshalIndent(parsed.Header, "", "  ")
		fmt.Printf("%s\n\n", headerJSON)
		fmt.Printf("=== Token Claims ===\n")
		claimsJSON, _ := json.MarshalIndent(parsed.Claims, "", "  ")
		fmt.Printf("%s\n\n", claimsJSON)
		fmt.Printf("Expires: %s\n", now.Add(*expiry).Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}

func splitRoles(s string) []string {
	var roles []string
	for _, role := range strings.Split(s, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
