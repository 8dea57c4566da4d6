package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

const (
	studentIDPrefix      = "STD"
	studentIDMin         = 1000
	studentIDMax         = 9999
	maxStudentIDAttempts = 100
)

// StudentIDExistsFunc reports whether a candidate student-facing ID is
// already taken within the institution. The acceptance coordinator binds
// this to its open transaction so the check and the insert share a snapshot.
type StudentIDExistsFunc func(ctx context.Context, studentID string) (bool, error)

// AllocateStudentID generates a short student-facing ID of the form STD9081,
// unique within the institution. It tries random 4-digit suffixes up to a
// bounded attempt count, then falls back to a UUID-derived ID that cannot
// collide. The fallback trades memorability for the guarantee that ID
// exhaustion never blocks an enrollment; the unique constraint on
// (institution_id, student_id) backstops the check-then-use window.
func AllocateStudentID(ctx context.Context, exists StudentIDExistsFunc) (string, error) {
	for attempt := 0; attempt < maxStudentIDAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%d", studentIDPrefix, studentIDMin+rand.Intn(studentIDMax-studentIDMin+1))
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check student id candidate: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return fallbackStudentID(), nil
}

func fallbackStudentID() string {
	return studentIDPrefix + strings.ToUpper(uuid.NewString()[:8])
}
