package database

import "time"

// User is a registered account. Usernames are the primary key and are
// never changed after signup.
type User struct {
	Username     string
	DisplayName  string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session maps an opaque token to an authenticated username.
// Expired sessions are invalid and get purged by the cleanup service.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Document is the durable metadata record for one uploaded file.
// StorageLocation names the blob in the file store; the blob and the
// record live and die together.
//
// CreatedAt is nullable: records imported without a timestamp keep NULL
// and the shared index substitutes the rebuild time for them.
type Document struct {
	ID              string
	StorageLocation string
	OwnerUserID     string
	PasswordHash    string
	DisplayName     string
	CreatedAt       *time.Time
}

// SharedIndexEntry is one document projected into the public shared index.
type SharedIndexEntry struct {
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	DownloadURL string    `json:"downloadUrl"`
}

// SharedIndex is the derived aggregate listing of all live documents.
// It is regenerated in full on every mutation and holds no independent state.
type SharedIndex struct {
	Files []SharedIndexEntry `json:"files"`
}
