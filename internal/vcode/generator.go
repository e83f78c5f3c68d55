// Package vcode generates voucher codes: an uppercase alphanumeric random
// part wrapped by an optional prefix and suffix. Generation only guarantees
// uniqueness against the caller-supplied set; the database unique constraint
// on the code column is the final authority, and a constraint violation at
// insert time is a retryable condition, not a fatal one.
package vcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxAttempts bounds collision retries per code. Exhausting it signals a
// configuration problem: the random part is too short for the requested
// batch size.
const maxAttempts = 1000

// Bounds on generator inputs. Length limits keep the collision space sane,
// the batch limit keeps bulk issuance latency predictable.
const (
	MinLength = 4
	MaxLength = 20
	MaxBatch  = 1000
)

var (
	// ErrSpaceExhausted is returned when maxAttempts consecutive draws all
	// collided with existing codes.
	ErrSpaceExhausted = errors.New("voucher code space exhausted, increase code length or reduce count")

	// ErrLengthOutOfRange is returned for a random-part length outside [MinLength, MaxLength].
	ErrLengthOutOfRange = fmt.Errorf("code length must be between %d and %d", MinLength, MaxLength)

	// ErrCountOutOfRange is returned for a bulk count outside [1, MaxBatch].
	ErrCountOutOfRange = fmt.Errorf("bulk count must be between 1 and %d", MaxBatch)
)

// Generate produces one code of the form PREFIX + random + SUFFIX, uppercased,
// absent from existing. existing may be nil.
func Generate(prefix, suffix string, length int, existing map[string]struct{}) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", ErrLengthOutOfRange
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		random, err := randomPart(length)
		if err != nil {
			return "", fmt.Errorf("draw random code: %w", err)
		}

		code := strings.ToUpper(prefix + random + suffix)
		if _, taken := existing[code]; !taken {
			return code, nil
		}
	}

	return "", ErrSpaceExhausted
}

// GenerateBulk produces count distinct codes, none of which appear in
// existing. The caller's set is not mutated.
func GenerateBulk(count int, prefix, suffix string, length int, existing map[string]struct{}) ([]string, error) {
	if count < 1 || count > MaxBatch {
		return nil, ErrCountOutOfRange
	}

	used := make(map[string]struct{}, len(existing)+count)
	for code := range existing {
		used[code] = struct{}{}
	}

	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := Generate(prefix, suffix, length, used)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		used[code] = struct{}{}
	}

	return codes, nil
}

// randomPart draws length characters uniformly from the alphabet using
// rejection sampling, so no character is favored by modulo bias.
func randomPart(length int) (string, error) {
	var sb strings.Builder
	sb.Grow(length)

	buf := make([]byte, length)
	for sb.Len() < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			// 252 is the largest multiple of len(alphabet) below 256.
			if int(b) < 252 {
				sb.WriteByte(alphabet[int(b)%len(alphabet)])
				if sb.Len() == length {
					break
				}
			}
		}
	}

	return sb.String(), nil
}
