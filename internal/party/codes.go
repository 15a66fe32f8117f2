package party

import (
	"fmt"
	"math/rand/v2"
	"strconv"
)

const (
	minCode   = 10000
	codeSpace = 90000
	// maxDraws bounds random sampling before falling back to a scan for a free code.
	maxDraws = 64
)

// ErrCodeSpaceExhausted is returned when every 5-digit code is taken.
var ErrCodeSpaceExhausted = fmt.Errorf("party code space exhausted")

// GenerateCode returns a 5-digit code in [10000, 99999] that is not in existing.
//
// Entries of existing that are not numbers are ignored. intn must return a value
// in [0, n); nil uses [rand.IntN].
func GenerateCode(existing []string, intn func(int) int) (string, error) {
	if intn == nil {
		intn = rand.IntN
	}

	taken := make(map[int]struct{}, len(existing))
	for _, code := range existing {
		n, err := strconv.Atoi(code)
		if err != nil || n < minCode || n >= minCode+codeSpace {
			continue
		}
		taken[n] = struct{}{}
	}

	if len(taken) >= codeSpace {
		return "", ErrCodeSpaceExhausted
	}

	candidate := minCode + intn(codeSpace)
	for range maxDraws {
		if _, ok := taken[candidate]; !ok {
			return strconv.Itoa(candidate), nil
		}
		candidate = minCode + intn(codeSpace)
	}

	for range codeSpace {
		if _, ok := taken[candidate]; !ok {
			return strconv.Itoa(candidate), nil
		}
		candidate++
		if candidate >= minCode+codeSpace {
			candidate = minCode
		}
	}

	return "", ErrCodeSpaceExhausted
}
