package friendship

import (
	"errors"
	"fmt"

	"amigo/backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service owns the friendship state machine. Every operation runs inside a single
// database transaction, and wherever a transition could race, the precondition
// check and the mutation are the same conditional statement — there is no window
// between checking a row's status and changing it.
type Service struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewService creates a friendship service on top of the given database handle.
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:  db,
		log: logrus.WithField("component", "friendship"),
	}
}

// Send creates a new outstanding friend request from requesterID to addresseeID.
//
// The decision is based on the most recent row for the ordered pair, not on "any
// row exists": a declined history never blocks a new request, while an outstanding
// request or an accepted friendship does. Two concurrent sends for the same pair
// cannot both commit — the partial unique index on outstanding requests rejects
// the second insert, which surfaces as ErrConflict.
func (s *Service) Send(requesterID, addresseeID uint) (*models.Friendship, error) {
	if requesterID == addresseeID {
		return nil, fmt.Errorf("%w: cannot send a request to yourself", ErrInvalidRequest)
	}

	var created models.Friendship
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var target models.User
		if err := tx.First(&target, addresseeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d does not exist", ErrInvalidRequest, addresseeID)
			}
			return err
		}

		var latest []models.Friendship
		if err := tx.Where("requester_id = ? AND addressee_id = ?", requesterID, addresseeID).
			Order("id DESC").Limit(1).Find(&latest).Error; err != nil {
			return err
		}
		if len(latest) > 0 {
			switch latest[0].Status {
			case models.StatusRequested:
				return fmt.Errorf("%w: a request to user %d is already pending", ErrConflict, addresseeID)
			case models.StatusAccepted:
				return fmt.Errorf("%w: already friends with user %d", ErrConflict, addresseeID)
			}
		}

		created = models.Friendship{
			RequesterID: requesterID,
			AddresseeID: addresseeID,
			Status:      models.StatusRequested,
		}
		if err := tx.Create(&created).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: a request to user %d is already pending", ErrConflict, addresseeID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Accept answers the outstanding request from counterpartID to callerID. The
// original row flips to accepted and a reciprocal accepted row is written for the
// caller's direction, atomically: both writes commit together or not at all.
//
// Only the addressee of a request can accept it; a requester calling Accept on
// their own outgoing request gets ErrNotFound because the predicate matches the
// incoming direction only.
func (s *Service) Accept(callerID, counterpartID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.answer(tx, callerID, counterpartID, models.StatusAccepted); err != nil {
			return err
		}

		// Reciprocal direction. If the caller had their own request pending toward
		// the counterpart, flip it in place so no orphaned pending row outlives the
		// formed friendship; otherwise insert the mirror row.
		rec := tx.Model(&models.Friendship{}).
			Where("requester_id = ? AND addressee_id = ? AND status = ?",
				callerID, counterpartID, models.StatusRequested).
			Update("status", models.StatusAccepted)
		if rec.Error != nil {
			return rec.Error
		}
		if rec.RowsAffected == 0 {
			mirror := models.Friendship{
				RequesterID: callerID,
				AddresseeID: counterpartID,
				Status:      models.StatusAccepted,
			}
			if err := tx.Create(&mirror).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Decline answers the outstanding request from counterpartID to callerID by
// flipping it to declined. The row is kept as history; the counterpart is free to
// send a new request afterwards. No reciprocal row is written.
func (s *Service) Decline(callerID, counterpartID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.answer(tx, callerID, counterpartID, models.StatusDeclined)
	})
}

// answer performs the guarded transition shared by Accept and Decline: a single
// conditional update keyed on status = requested. Zero affected rows means there
// is no outstanding request (or a concurrent answer won the race). More than one
// means the single-outstanding-request invariant is broken in stored data; the
// transaction is rolled back rather than guessing which row was meant.
func (s *Service) answer(tx *gorm.DB, callerID, counterpartID uint, to models.FriendshipStatus) error {
	res := tx.Model(&models.Friendship{}).
		Where("requester_id = ? AND addressee_id = ? AND status = ?",
			counterpartID, callerID, models.StatusRequested).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	switch {
	case res.RowsAffected == 0:
		return fmt.Errorf("%w: no pending request from user %d", ErrNotFound, counterpartID)
	case res.RowsAffected > 1:
		s.log.WithFields(logrus.Fields{
			"requester_id": counterpartID,
			"addressee_id": callerID,
			"rows":         res.RowsAffected,
		}).Error("multiple outstanding requests matched for one ordered pair")
		return fmt.Errorf("%w: %d outstanding requests for pair (%d, %d)",
			ErrIntegrity, res.RowsAffected, counterpartID, callerID)
	}
	return nil
}

// RelationBetween returns the most recent relationship row from fromID to toID,
// or ErrNotFound when the pair has no history in that direction.
func (s *Service) RelationBetween(fromID, toID uint) (*models.Friendship, error) {
	var latest []models.Friendship
	if err := s.db.Where("requester_id = ? AND addressee_id = ?", fromID, toID).
		Order("id DESC").Limit(1).Find(&latest).Error; err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return nil, fmt.Errorf("%w: no relation from user %d to user %d", ErrNotFound, fromID, toID)
	}
	return &latest[0], nil
}
