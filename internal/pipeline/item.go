package pipeline

import (
	"context"
	"log/slog"
)

// MediaItem is one in-flight submission. It lives for exactly one request;
// everything derived from it goes into that request's scratch directory.
type MediaItem struct {
	Data           []byte
	Mimetype       string
	ConversationID string
	GroupID        *string
	SenderID       *string
}

// Messenger is the chat platform boundary. Delivery errors are logged and
// never fail the pipeline.
type Messenger interface {
	SendSticker(ctx context.Context, conversationID string, webp []byte) error
	SendText(ctx context.Context, conversationID, text string) error
	SendError(ctx context.Context, conversationID, text string) error
	SetTyping(ctx context.Context, conversationID string, typing bool) error
}

// Status classifies how a submission ended.
type Status string

const (
	StatusCreated   Status = "created"
	StatusDuplicate Status = "duplicate"
	StatusStored    Status = "stored" // kept in original encoding, no sticker
)

// Outcome reports what the pipeline did with a submission.
type Outcome struct {
	Status Status
	Record *MediaRecordRef
	// Duplicate points at the earlier record when Status is StatusDuplicate.
	Duplicate *MediaRecordRef
	// Oversized marks a delivered sticker above the byte ceiling.
	Oversized bool
	// Flagged marks content that screened positive; it is stored without
	// annotation.
	Flagged bool
}

// MediaRecordRef is the subset of a catalog record surfaced to callers.
type MediaRecordRef struct {
	ID          string
	Description string
}

// LogMessenger is the default Messenger when no chat adapter is attached:
// outcomes are already reported through the HTTP response, so deliveries
// just get logged.
type LogMessenger struct{}

func (LogMessenger) SendSticker(_ context.Context, conversationID string, webp []byte) error {
	slog.Info("sticker ready", "conversation", conversationID, "bytes", len(webp))
	return nil
}

func (LogMessenger) SendText(_ context.Context, conversationID, text string) error {
	slog.Info("reply", "conversation", conversationID, "text", text)
	return nil
}

func (LogMessenger) SendError(_ context.Context, conversationID, text string) error {
	slog.Warn("error reply", "conversation", conversationID, "text", text)
	return nil
}

func (LogMessenger) SetTyping(context.Context, string, bool) error { return nil }
