package errors

// Business failures of the messaging core. Services return these as
// plain error values; handlers read Status/Code off them.
var (
	ErrMessageNotFound        = NotFound("message not found")
	ErrConversationNotFound   = NotFound("conversation not found")
	ErrMemberNotFound         = NotFound("member not found")
	ErrReceiverNotFound       = NotFound("receiver not found")
	ErrMessageAlreadyDeleted  = AlreadyInState("message already deleted")
	ErrUserNotAuthorized      = NotAuthorized("user not authorized")
	ErrSenderBlocked          = RelationshipViolation("sender is blocked by receiver")
	ErrFriendshipNotFound     = RelationshipViolation("users are not friends")
	ErrNotGroupMember         = NotAuthorized("sender is not a member of this group")
	ErrRequestAlreadySent     = AlreadyInState("friend request already sent")
	ErrAlreadyFriends         = AlreadyInState("users are already friends")
	ErrSelfTarget             = RelationshipViolation("cannot target yourself")
	ErrRoleChangeForbidden    = NotAuthorized("role cannot be changed")
	ErrLastMemberOnly         = NotAuthorized("only the last remaining creator can delete the group")
	ErrCreatorCannotExit      = NotAuthorized("group creator cannot exit the group")
	ErrEmptyMessage           = InvalidPayload("message body cannot be empty")
	ErrMessageTooLong         = InvalidPayload("message body exceeds maximum length")
	ErrNoAttachments          = InvalidPayload("at least one attachment is required")
	ErrAllUploadsFailed       = InvalidPayload("no attachment could be uploaded")
	ErrContentDeletionFailed  = NewWithCode(CodeContentDeletionFailed, "failed to delete message content", 500)
	ErrConversationNotPrivate = InvalidPayload("conversation is not a private conversation")
	ErrConversationNotGroup   = InvalidPayload("conversation is not a group")
)
