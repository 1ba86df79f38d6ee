package db

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/models"
	"gorm.io/gorm"
)

// FriendshipRepository gates message sending. IsBlocked and AreFriends
// are read-only inputs to the message service; the request flow only
// writes its own rows.
type FriendshipRepository interface {
	IsBlocked(blockerID, blockedID uuid.UUID) (bool, error)
	AreFriends(aID, bID uuid.UUID) (bool, error)
	CreateFriendRequest(senderID, receiverID uuid.UUID) (*models.FriendRequest, error)
	AcceptFriendRequest(requestID, receiverID uuid.UUID) (*models.FriendRequest, error)
}

type friendshipRepo struct {
	DB *gorm.DB
}

func NewFriendshipRepo(db *GormDB) FriendshipRepository {
	return &friendshipRepo{db.DB}
}

func (r *friendshipRepo) IsBlocked(blockerID, blockedID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB.Model(&models.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check block")
	}
	return count > 0, nil
}

func (r *friendshipRepo) AreFriends(aID, bID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB.Model(&models.Friendship{}).
		Where("user_id = ? AND friend_id = ?", aID, bID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check friendship")
	}
	return count > 0, nil
}

// CreateFriendRequest guards against self-targeting, existing
// friendship, blocks in either direction, and duplicate pending
// requests.
func (r *friendshipRepo) CreateFriendRequest(senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == receiverID {
		return nil, errs.ErrSelfTarget
	}

	friends, err := r.AreFriends(senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, errs.ErrAlreadyFriends
	}

	for _, pair := range [][2]uuid.UUID{{receiverID, senderID}, {senderID, receiverID}} {
		blocked, err := r.IsBlocked(pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, errs.ErrSenderBlocked
		}
	}

	var existing models.FriendRequest
	err = r.DB.
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiverID, models.FriendRequestPending).
		First(&existing).Error
	if err == nil {
		return nil, errs.ErrRequestAlreadySent
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "failed to check existing request")
	}

	request := models.FriendRequest{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.FriendRequestPending,
	}
	if err := r.DB.Create(&request).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create friend request")
	}
	return &request, nil
}

// AcceptFriendRequest flips the request to accepted and writes the
// friendship in both directions, atomically.
func (r *friendshipRepo) AcceptFriendRequest(requestID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	var request models.FriendRequest
	err := r.DB.Where("id = ? AND receiver_id = ?", requestID, receiverID).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to fetch friend request")
	}
	if request.Status != models.FriendRequestPending {
		return nil, errs.AlreadyInState("friend request already resolved")
	}

	tx := r.DB.Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "failed to begin transaction")
	}
	request.Status = models.FriendRequestAccepted
	if err := tx.Save(&request).Error; err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "failed to update friend request")
	}
	friendships := []models.Friendship{
		{ID: uuid.New(), UserID: request.SenderID, FriendID: request.ReceiverID},
		{ID: uuid.New(), UserID: request.ReceiverID, FriendID: request.SenderID},
	}
	if err := tx.Create(&friendships).Error; err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "failed to create friendship")
	}
	if err := tx.Commit().Error; err != nil {
		return nil, errors.Wrap(err, "failed to commit friendship")
	}
	return &request, nil
}
