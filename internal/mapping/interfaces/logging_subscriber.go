package interfaces

import (
	"context"
	"errors"
	"log"

	"datamap-cloud/internal/eventbus"
	mappingapp "datamap-cloud/internal/mapping/application"
	mapping "datamap-cloud/internal/mapping/domain"
)

// LoggingSubscriber logs mapping session events.
type LoggingSubscriber struct {
	logger *log.Logger
}

// NewLoggingSubscriber constructs a logging subscriber.
func NewLoggingSubscriber(logger *log.Logger) *LoggingSubscriber {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingSubscriber{logger: logger}
}

// Register subscribes the subscriber to every mapping event.
func (s *LoggingSubscriber) Register(bus eventbus.EventBus) {
	eventbus.SubscribeTyped(bus, s.SuggestionsMerged)
	eventbus.SubscribeTyped(bus, s.StaleSuggestionsDiscarded)
	eventbus.SubscribeTyped(bus, s.MappingSubmitted)
}

// SuggestionsMerged logs the event.
func (s *LoggingSubscriber) SuggestionsMerged(ctx context.Context, event mappingapp.SuggestionsMerged) error {
	_ = ctx
	if s == nil {
		return errors.New("mapping subscriber: nil subscriber")
	}
	s.logger.Printf("mapping suggestions merged: session=%s dataset=%d mode=%s received=%d added=%d",
		event.SessionID, event.DatasetID, event.Mode, event.Received, event.Added)
	return nil
}

// StaleSuggestionsDiscarded logs the event.
func (s *LoggingSubscriber) StaleSuggestionsDiscarded(ctx context.Context, event mappingapp.StaleSuggestionsDiscarded) error {
	_ = ctx
	if s == nil {
		return errors.New("mapping subscriber: nil subscriber")
	}
	s.logger.Printf("mapping suggestions discarded: session=%s dataset=%d active=%s",
		event.SessionID, event.DatasetID, mapping.DatasetLabel(event.ActiveDatasetID))
	return nil
}

// MappingSubmitted logs the event.
func (s *LoggingSubscriber) MappingSubmitted(ctx context.Context, event mappingapp.MappingSubmitted) error {
	_ = ctx
	if s == nil {
		return errors.New("mapping subscriber: nil subscriber")
	}
	s.logger.Printf("mapping submitted: session=%s dataset=%s category=%s fields=%d fingerprint=%s",
		event.SessionID, mapping.DatasetLabel(event.DatasetID), event.Category, event.Fields, event.Fingerprint)
	return nil
}
