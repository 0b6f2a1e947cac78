package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

var (
	ErrInvalidCode         = errors.New("invalid custom code")
	ErrCodeTaken           = errors.New("short code already taken")
	ErrGenerationExhausted = errors.New("exhausted attempts to generate a unique code")
)

const (
	codeLength          = 8
	maxAllocateAttempts = 5
	charset             = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Custom codes collide case-sensitively: "Promo" and "promo" are distinct.
var customCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

// reservedCodes would shadow routes mounted at the root of the domain.
var reservedCodes = map[string]struct{}{
	"shorten": {},
	"api":     {},
	"docs":    {},
	"metrics": {},
	"health":  {},
}

// CodeChecker is the uniqueness oracle the generator consults. The check
// only narrows the collision window; the storage-layer unique constraint
// is what actually closes it.
type CodeChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator allocates short codes: it validates caller-supplied custom
// codes or draws random unused candidates.
type CodeGenerator interface {
	Allocate(ctx context.Context, customCode *string) (string, error)
}

type codeGenerator struct {
	checker CodeChecker
}

func NewCodeGenerator(checker CodeChecker) CodeGenerator {
	return &codeGenerator{checker: checker}
}

func (g *codeGenerator) Allocate(ctx context.Context, customCode *string) (string, error) {
	if customCode != nil && *customCode != "" {
		return g.allocateCustom(ctx, *customCode)
	}

	// Bounded retry with an explicit counter keeps the worst case visible.
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}

		exists, err := g.checker.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", ErrGenerationExhausted
}

func (g *codeGenerator) allocateCustom(ctx context.Context, code string) (string, error) {
	if err := ValidateCustomCode(code); err != nil {
		return "", err
	}

	exists, err := g.checker.Exists(ctx, code)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrCodeTaken
	}

	return code, nil
}

// ValidateCustomCode checks charset, length and reserved-word rules.
func ValidateCustomCode(code string) error {
	if !customCodePattern.MatchString(code) {
		return ErrInvalidCode
	}
	if _, reserved := reservedCodes[code]; reserved {
		return ErrInvalidCode
	}
	return nil
}

func randomCode() (string, error) {
	result := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}
