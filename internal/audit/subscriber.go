package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"datamap-cloud/internal/auth"
	"datamap-cloud/internal/eventbus"
	mappingapp "datamap-cloud/internal/mapping/application"
)

// Subscriber turns mapping events into audit entries.
type Subscriber struct {
	sink   Logger
	logger *log.Logger
}

// NewSubscriber constructs an audit subscriber.
func NewSubscriber(sink Logger, logger *log.Logger) (*Subscriber, error) {
	if sink == nil {
		return nil, errors.New("audit subscriber: nil sink")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Subscriber{sink: sink, logger: logger}, nil
}

// Register subscribes the audit handlers on bus.
func (s *Subscriber) Register(bus eventbus.EventBus) {
	eventbus.SubscribeTyped(bus, s.HandleMappingSubmitted)
}

// HandleMappingSubmitted records a persisted mapping. Sink failures are
// logged and never fail the submission.
func (s *Subscriber) HandleMappingSubmitted(ctx context.Context, event mappingapp.MappingSubmitted) error {
	editor, _ := auth.EditorFromContext(ctx)
	metadata, err := json.Marshal(editorMetadata(editor, map[string]any{
		"session_id":  event.SessionID,
		"category":    event.Category,
		"fields":      event.Fields,
		"fingerprint": event.Fingerprint,
	}))
	if err != nil {
		return err
	}
	request := RequestFromContext(ctx)
	entry := Entry{
		Actor:        editor.Subject,
		Role:         string(editor.Role),
		Action:       ActionMappingSubmit,
		ResourceType: ResourceMapping,
		ResourceID:   datasetResourceID(event.DatasetID),
		DatasetKey:   event.DatasetID,
		Metadata:     metadata,
		IP:           request.IP,
		UserAgent:    request.UserAgent,
		CreatedAt:    event.OccurredAt,
	}
	if err := s.sink.Log(ctx, entry); err != nil {
		s.logger.Printf("audit error: action=%s resource=%s err=%v", entry.Action, entry.ResourceID, err)
	}
	return nil
}

// RecordExport records a report export.
func (s *Subscriber) RecordExport(ctx context.Context, format string, datasetID *int64) {
	editor, _ := auth.EditorFromContext(ctx)
	metadata, _ := json.Marshal(editorMetadata(editor, map[string]any{"format": format}))
	request := RequestFromContext(ctx)
	entry := Entry{
		Actor:        editor.Subject,
		Role:         string(editor.Role),
		Action:       ActionMappingExport,
		ResourceType: ResourceMappingSheet,
		ResourceID:   datasetResourceID(datasetID),
		DatasetKey:   datasetID,
		Metadata:     metadata,
		IP:           request.IP,
		UserAgent:    request.UserAgent,
	}
	if err := s.sink.Log(ctx, entry); err != nil {
		s.logger.Printf("audit error: action=%s resource=%s err=%v", entry.Action, entry.ResourceID, err)
	}
}

// editorMetadata adds the editor display name and token id when known.
func editorMetadata(editor auth.Editor, metadata map[string]any) map[string]any {
	if editor.Name != "" {
		metadata["editor_name"] = editor.Name
	}
	if editor.TokenID != "" {
		metadata["token_id"] = editor.TokenID
	}
	return metadata
}

func datasetResourceID(id *int64) string {
	if id == nil {
		return "template"
	}
	return formatInt(*id)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
