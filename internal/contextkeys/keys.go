package contextkeys

import "context"

type messageTypeKey struct{}
type updateIDKey struct{}
type traceIDKey struct{}

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypePhoto       MessageType = "photo"
	MessageTypeCommand     MessageType = "command"
	MessageTypeClickButton MessageType = "click_button"
	MessageTypeUnknown     MessageType = "unknown"
)

func WithMessageType(ctx context.Context, msgType MessageType) context.Context {
	return context.WithValue(ctx, messageTypeKey{}, msgType)
}

func GetMessageType(ctx context.Context) (MessageType, bool) {
	v, ok := ctx.Value(messageTypeKey{}).(MessageType)
	if !ok {
		return MessageTypeUnknown, false
	}
	return v, true
}

func WithUpdateID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, updateIDKey{}, id)
}

func GetUpdateID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(updateIDKey{}).(int64)
	return v, ok
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey{}).(string)
	return v, ok && v != ""
}
