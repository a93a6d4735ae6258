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

// Command wpsd runs the work package service daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/genomics-archive/wps/internal/http/services/workpackages"
	"github.com/genomics-archive/wps/pkg/access"
	"github.com/genomics-archive/wps/pkg/auth"
	"github.com/genomics-archive/wps/pkg/config"
	"github.com/genomics-archive/wps/pkg/events"
	"github.com/genomics-archive/wps/pkg/events/kafka"
	"github.com/genomics-archive/wps/pkg/rhttp"
	"github.com/genomics-archive/wps/pkg/token"
	"github.com/genomics-archive/wps/pkg/workpackage"
	"github.com/genomics-archive/wps/pkg/workpackage/store/mongo"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("c", "", "configuration file")
	flag.Parse()

	c, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := newLogger(c)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(c, log); err != nil {
		log.Fatal().Err(err).Msg("service failed")
	}
}

func newLogger(c *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), err
	}
	var log zerolog.Logger
	if c.LogMode == "console" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	log = log.Level(level).With().Timestamp().
		Str("service", "wps").Str("instance", c.ServiceInstanceID).Logger()
	return log, nil
}

func run(c *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	signer, err := token.NewSigner(c.WorkPackageSigningKey)
	if err != nil {
		return err
	}
	verifier, err := auth.NewVerifier(c.AuthKey, c.AuthAlgs, c.AuthCheckClaims)
	if err != nil {
		return err
	}

	client, err := mongo.Connect(ctx, &mongo.Config{
		DSN:     c.MongoDSN,
		Timeout: c.MongoTimeout,
		DBName:  c.DBName,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("error disconnecting from document store")
		}
	}()

	datasets := mongo.NewDatasetStore(client, c.DatasetsCollection)
	store := mongo.NewStore(client, c.WorkPackagesCollection)
	oracle := access.New(c.AccessURL, c.AccessUploadURL, c.AccessTimeout)
	manager := workpackage.NewManager(signer, verifier, datasets, store, oracle, c.WorkPackageValidDays)

	handler := events.NewHandler(c.DatasetUpsertionType, c.DatasetDeletionType, manager)
	subscriber := kafka.NewSubscriber(c.KafkaServers, c.KafkaGroupID, c.DatasetChangeTopic,
		handler, log.With().Str("pkg", "events").Logger())
	defer func() {
		if err := subscriber.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event subscriber")
		}
	}()

	server := rhttp.New(
		rhttp.WithHandler(workpackages.New(manager)),
		rhttp.WithLogger(log.With().Str("pkg", "rhttp").Logger()),
		rhttp.WithCORSOrigins(c.CORSOrigins),
	)
	ln, err := net.Listen("tcp", c.Address)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ln)
	})
	g.Go(func() error {
		// events are re-delivered after a handler failure, so keep retrying
		for {
			err := subscriber.Run(gctx)
			if gctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("event subscriber failed, restarting")
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		return server.GracefulStop(shutdownTimeout)
	})

	return g.Wait()
}
