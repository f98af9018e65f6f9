// internal/game/codegen.go
package game

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/jason-s-yu/heist/internal/models"
)

const (
	// RoomCodeChars leaves out 0/O and 1/I so codes survive being read aloud.
	RoomCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RoomCodeLength = 6

	// DefaultCodeAttempts bounds how many candidates Generate tries.
	DefaultCodeAttempts = 5
)

// CodeGenerator draws room codes from a restricted alphabet.
type CodeGenerator struct {
	Alphabet    string
	Length      int
	MaxAttempts int

	// Rand is the entropy source; crypto/rand when nil.
	Rand io.Reader
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{
		Alphabet:    RoomCodeChars,
		Length:      RoomCodeLength,
		MaxAttempts: DefaultCodeAttempts,
		Rand:        crand.Reader,
	}
}

// Next returns one candidate code without checking for collisions.
func (g *CodeGenerator) Next() (string, error) {
	src := g.Rand
	if src == nil {
		src = crand.Reader
	}
	max := big.NewInt(int64(len(g.Alphabet)))
	code := make([]byte, g.Length)
	for i := range code {
		n, err := crand.Int(src, max)
		if err != nil {
			return "", fmt.Errorf("reading code entropy: %w", err)
		}
		code[i] = g.Alphabet[n.Int64()]
	}
	return string(code), nil
}

// Generate draws candidates until inUse reports one free, giving up with
// models.ErrCodeSpaceExhausted after MaxAttempts collisions.
func (g *CodeGenerator) Generate(ctx context.Context, inUse func(ctx context.Context, code string) (bool, error)) (string, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultCodeAttempts
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.Next()
		if err != nil {
			return "", err
		}
		taken, err := inUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("checking room code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", models.ErrCodeSpaceExhausted
}

// NormalizeCode upper-cases user input and strips surrounding whitespace.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code has the right length and alphabet.
func ValidCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(RoomCodeChars, c) {
			return false
		}
	}
	return true
}
