// Package verify implements the completion verification workflow: users
// contest a deadline's status, admins approve or reject the claim.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vladmir0512/deadline-bot/internal/domain"
	"github.com/vladmir0512/deadline-bot/internal/store"
)

var (
	// ErrUnauthorized is returned when the caller does not own the deadline
	// or is not an admin.
	ErrUnauthorized = errors.New("verify: not allowed")
	// ErrInvalidState is returned when resolving a verification that is no
	// longer pending.
	ErrInvalidState = errors.New("verify: verification already resolved")
)

// Service runs the verification workflow on top of the store.
type Service struct {
	repo   store.Repo
	log    *zap.Logger
	admins map[int64]bool
}

func NewService(repo store.Repo, log *zap.Logger, adminIDs []int64) *Service {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Service{repo: repo, log: log, admins: admins}
}

// IsAdmin reports whether the telegram id belongs to a configured admin.
func (s *Service) IsAdmin(telegramID int64) bool {
	return s.admins[telegramID]
}

// File opens a verification request for a deadline. Only the deadline's
// owner may file, and at most one pending request can exist per deadline.
func (s *Service) File(ctx context.Context, deadlineID, userID int64, comment string) (*domain.DeadlineVerification, error) {
	d, err := s.repo.GetDeadline(ctx, deadlineID)
	if err != nil {
		return nil, fmt.Errorf("get deadline: %w", err)
	}
	if d.UserID != userID {
		return nil, ErrUnauthorized
	}
	v := &domain.DeadlineVerification{
		DeadlineID:  deadlineID,
		UserID:      userID,
		Status:      domain.VerificationPending,
		UserComment: comment,
	}
	if err := s.repo.CreateVerification(ctx, v); err != nil {
		return nil, err
	}
	s.log.Info("verification filed",
		zap.Int64("verification_id", v.ID),
		zap.Int64("deadline_id", deadlineID),
		zap.Int64("user_id", userID))
	return v, nil
}

// Resolve approves or rejects a pending verification. Approval marks the
// deadline completed; rejection leaves it untouched. Both are terminal.
func (s *Service) Resolve(ctx context.Context, verificationID, adminTelegramID int64, approve bool, comment string) (*domain.DeadlineVerification, error) {
	if !s.admins[adminTelegramID] {
		return nil, ErrUnauthorized
	}
	v, err := s.repo.GetVerification(ctx, verificationID)
	if err != nil {
		return nil, fmt.Errorf("get verification: %w", err)
	}
	if v.Status != domain.VerificationPending {
		return nil, ErrInvalidState
	}

	now := time.Now().UTC()
	if approve {
		v.Status = domain.VerificationApproved
	} else {
		v.Status = domain.VerificationRejected
	}
	v.AdminComment = comment
	v.VerifiedBy = &adminTelegramID
	v.VerifiedAt = &now
	if err := s.repo.UpdateVerification(ctx, v); err != nil {
		return nil, fmt.Errorf("update verification: %w", err)
	}

	if approve {
		if err := s.repo.SetDeadlineStatus(ctx, v.DeadlineID, domain.StatusCompleted); err != nil {
			return nil, fmt.Errorf("complete deadline: %w", err)
		}
	}

	s.log.Info("verification resolved",
		zap.Int64("verification_id", v.ID),
		zap.String("status", string(v.Status)),
		zap.Int64("admin", adminTelegramID))
	return v, nil
}

// Pending lists verifications awaiting resolution, oldest first.
func (s *Service) Pending(ctx context.Context) ([]domain.DeadlineVerification, error) {
	return s.repo.ListPendingVerifications(ctx)
}
