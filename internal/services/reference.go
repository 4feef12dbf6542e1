package services

import (
	"context"
	"crypto/rand"

	"busbook/internal/domain"
)

// referenceAlphabet drops look-alike characters (0/O, 1/I).
const referenceAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	referenceLength      = 8
	maxReferenceAttempts = 5
)

type referenceChecker interface {
	ReferenceExists(ctx context.Context, ref string) (bool, error)
}

// newBookingReference returns "BK-" and eight characters of
// referenceAlphabet. The alphabet has 32 symbols, so the low five bits of
// each random byte pick one without bias.
func newBookingReference() string {
	buf := make([]byte, referenceLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = referenceAlphabet[b&0x1f]
	}
	return "BK-" + string(buf)
}

// uniqueReference draws references until one is unused.
func uniqueReference(ctx context.Context, store referenceChecker, gen func() string) (string, error) {
	for i := 0; i < maxReferenceAttempts; i++ {
		ref := gen()
		exists, err := store.ReferenceExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", domain.InternalError{Msg: "could not allocate a unique booking reference"}
}
