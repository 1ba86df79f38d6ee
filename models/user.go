package models

// User is the account a message is sent by or delivered to. Account
// creation and credentials live outside this service; only the fields
// the messaging core reads are mapped here.
type User struct {
	Model
	Fullname    string `json:"fullname"`
	Username    string `json:"username" gorm:"unique;not null"`
	Email       string `json:"email" gorm:"unique;not null"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	DeviceToken string `json:"-"`
	Online      bool   `json:"online"`
}
