// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	walletContextKey = "wallet"
	walletClaim      = "addr"
)

// JWTMiddleware authenticates the caller from an HS256 bearer token and
// stores the wallet from its addr claim in the request context
func JWTMiddleware(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			abortUnauthorized(c)
			return
		}
		claims := jwt.MapClaims{}
		tok, err := parser.ParseWithClaims(
			strings.TrimPrefix(h, "Bearer "),
			claims,
			func(*jwt.Token) (any, error) { return secret, nil },
		)
		if err != nil || !tok.Valid {
			abortUnauthorized(c)
			return
		}
		wallet, _ := claims[walletClaim].(string)
		if wallet == "" {
			abortUnauthorized(c)
			return
		}
		c.Set(walletContextKey, wallet)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(
		http.StatusUnauthorized,
		errorResponse{Error: "A connected wallet is required."},
	)
}

// IssueToken signs a session token for wallet
func IssueToken(secret []byte, wallet string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		walletClaim: wallet,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func walletFrom(c *gin.Context) string {
	return c.GetString(walletContextKey)
}
