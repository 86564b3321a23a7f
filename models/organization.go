package models

import (
	"time"
)

type OrgID = string

type Organization struct {
	ID                   OrgID      `db:"id"                      json:"id"`
	SecretKey            *string    `db:"secret_key"              json:"-"`
	SecretKeyGeneratedAt *time.Time `db:"secret_key_generated_at" json:"secret_key_generated_at"`
	CreatedAt            time.Time  `db:"created_at"              json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"              json:"updated_at"`
}
