package client

import "classchat-service/internal/models"

// The session API is meant to be imported by other modules, which cannot
// reach into internal packages. The wire types it exposes are re-exported
// here so callbacks and envelopes can be named with client.* alone.
type (
	ChatMessage  = models.ChatMessage
	SystemEvent  = models.SystemEvent
	MessageEvent = models.MessageEvent
	ErrorEvent   = models.ErrorEvent
	ClientEvent  = models.ClientEvent
	MessageType  = models.MessageType
	MemberType   = models.MemberType
	Role         = models.Role
)

// Message kinds.
const (
	MessageTypeText        = models.MessageTypeText
	MessageTypeExamResult  = models.MessageTypeExamResult
	MessageTypeGrade       = models.MessageTypeGrade
	MessageTypeSubjectInfo = models.MessageTypeSubjectInfo
	MessageTypeFile        = models.MessageTypeFile
)

// Envelope types.
const (
	EventSystem  = models.EventSystem
	EventMessage = models.EventMessage
	EventPong    = models.EventPong
	EventError   = models.EventError
	EventPing    = models.EventPing
)
