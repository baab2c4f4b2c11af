package service

import (
	"errors"
	"fmt"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// notFound maps pgx.ErrNoRows to the service sentinel.
func notFound(err error, sentinel error, id uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return err
}

func requireAdmin(p models.Principal) error {
	if !p.IsAdmin() {
		return fmt.Errorf("%w: admin role required", models.ErrForbidden)
	}
	return nil
}

// authorize allows admins and any of the listed users.
func authorize(p models.Principal, allowed ...uuid.UUID) error {
	if p.IsAdmin() {
		return nil
	}
	for _, id := range allowed {
		if id != uuid.Nil && id == p.UserID {
			return nil
		}
	}
	return fmt.Errorf("%w: user %s may not access this resource", models.ErrForbidden, p.UserID)
}

func actorOf(p models.Principal) *uuid.UUID {
	if p.UserID == uuid.Nil {
		return nil
	}
	id := p.UserID
	return &id
}
