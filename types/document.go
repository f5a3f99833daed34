package types

import "time"

// Document is a file uploaded in support of an application. The file body
// lives in object storage under ObjectKey.
type Document struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	ObjectKey     string    `json:"-"`
	ContentType   string    `json:"contentType"`
	SizeBytes     int64     `json:"sizeBytes"`
	CreatedAt     time.Time `json:"createdAt"`
}
