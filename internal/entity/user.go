package entity

import "time"

const RoleLeader = "LEADER"

type User struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	Mobile      string    `json:"mobile" db:"mobile"`
	Role        string    `json:"role" db:"role"`
	DeviceToken string    `json:"-" db:"device_token"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
