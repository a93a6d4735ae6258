// Copyright 2021-2026 The Work Package Service Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kafka subscribes to the dataset change topic and feeds the events
// to the dataset projection handler.
package kafka

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"

	"github.com/genomics-archive/wps/pkg/appctx"
)

// the event type travels in a message header, as produced by the upstream
const typeHeader = "type"

// Handler processes a single event of the given type.
type Handler interface {
	Handle(ctx context.Context, eventType string, payload []byte) error
}

// Subscriber consumes the dataset change topic within a consumer group.
type Subscriber struct {
	reader  *kafka.Reader
	handler Handler
	log     zerolog.Logger
}

// NewSubscriber creates a Subscriber for the given brokers and topic.
func NewSubscriber(brokers []string, groupID, topic string, handler Handler, log zerolog.Logger) *Subscriber {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
	return &Subscriber{reader: r, handler: handler, log: log}
}

// Run consumes messages until the context is cancelled or the handler fails.
// Offsets are committed only after successful handling, so an uncommitted
// event is re-delivered when the subscriber is restarted; poisonous events
// are dead-lettered by the bus per its configuration.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "kafka: error fetching message")
		}

		log := s.log.With().
			Str("topic", m.Topic).
			Int("partition", m.Partition).
			Int64("offset", m.Offset).
			Logger()
		mctx := appctx.WithLogger(ctx, &log)

		if err := s.handler.Handle(mctx, eventType(&m), m.Value); err != nil {
			log.Error().Err(err).Msg("error handling event")
			return err
		}
		if err := s.reader.CommitMessages(ctx, m); err != nil {
			return errors.Wrap(err, "kafka: error committing offset")
		}
	}
}

// Close closes the underlying reader.
func (s *Subscriber) Close() error {
	return s.reader.Close()
}

func eventType(m *kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == typeHeader {
			return string(h.Value)
		}
	}
	return ""
}
