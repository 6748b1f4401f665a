package models

import (
	"time"

	"gorm.io/datatypes"
)

// Identity repräsentiert eine registrierte Person, identifiziert über ihr Label
type Identity struct {
	Label     string    `gorm:"primaryKey;size:191" json:"label"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Captures  []Capture `gorm:"foreignKey:IdentityLabel;references:Label;constraint:OnDelete:CASCADE;" json:"-"`
}

// Capture repräsentiert eine gespeicherte Aufnahme (Bild + optionales Embedding)
type Capture struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	IdentityLabel *string        `gorm:"index;size:191" json:"label"`          // nil bei anonymen Aufnahmen
	ImagePath     string         `gorm:"size:512;not null" json:"image_path"`  // JPEG im Bildverzeichnis
	EmbeddingPath *string        `gorm:"size:512" json:"embedding_path"`       // .npy im Embedding-Verzeichnis
	FacesInFrame  int            `json:"faces_in_frame"`
	BoundingBox   datatypes.JSON `gorm:"type:json" json:"bounding_box"` // top/right/bottom/left
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
}

// IdentitySummary fasst eine Identität mit der Anzahl ihrer Aufnahmen zusammen
type IdentitySummary struct {
	Label     string    `json:"label"`
	Captures  int64     `json:"captures"`
	CreatedAt time.Time `json:"created_at"`
}

// EmbeddingRef verweist auf ein gespeichertes Embedding einer registrierten Identität
type EmbeddingRef struct {
	Label string
	Path  string
}

// Statistics enthält Kennzahlen für die Statusseite
type Statistics struct {
	Identities        int64 `json:"identities"`
	Captures          int64 `json:"captures"`
	AnonymousCaptures int64 `json:"anonymous_captures"`
}
