package storage

import (
	"strings"
	"time"
)

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// MediaRecord is one accepted sticker artifact in the catalog.
type MediaRecord struct {
	ID             string  `json:"id"`
	FilePath       string  `json:"file_path"`
	Mimetype       string  `json:"mimetype"`
	Description    string  `json:"description"`
	HashVisual     *string `json:"hash_visual,omitempty"`
	HashMD5        *string `json:"hash_md5,omitempty"`
	NSFW           int     `json:"nsfw"`
	ChatID         string  `json:"chat_id"`
	GroupID        *string `json:"group_id,omitempty"`
	SenderID       *string `json:"sender_id,omitempty"`
	ExtractedText  *string `json:"extracted_text,omitempty"`
	UsageCount     int     `json:"usage_count"`
	CreatedAt      string  `json:"created_at"`
}

func NewMediaRecord(id, filePath, mimetype, chatID string) MediaRecord {
	return MediaRecord{
		ID:        id,
		FilePath:  filePath,
		Mimetype:  mimetype,
		ChatID:    chatID,
		CreatedAt: nowISO(),
	}
}

// NormalizeTag lowercases a tag and strips a leading '#'.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(strings.ToLower(tag))
	return strings.TrimPrefix(tag, "#")
}
