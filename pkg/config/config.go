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

// Package config loads and validates the service configuration from a YAML
// file merged with environment variables carrying the "WPS_" prefix.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds all parameters of the service.
type Config struct {
	ServiceInstanceID string `mapstructure:"service_instance_id" validate:"required"`

	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	LogLevel string `mapstructure:"log_level"`
	LogMode  string `mapstructure:"log_mode"`

	// WorkPackageSigningKey is the private ES256 key used to sign work order
	// tokens, as a JSON web key.
	WorkPackageSigningKey string `mapstructure:"work_package_signing_key" validate:"required"`
	WorkPackageValidDays  int    `mapstructure:"work_package_valid_days"`

	// AuthKey is the public key used to verify internal auth assertions,
	// as a JSON web key.
	AuthKey         string   `mapstructure:"auth_key" validate:"required"`
	AuthAlgs        []string `mapstructure:"auth_algs"`
	AuthCheckClaims []string `mapstructure:"auth_check_claims"`

	MongoDSN               string        `mapstructure:"mongo_dsn" validate:"required"`
	MongoTimeout           time.Duration `mapstructure:"mongo_timeout"`
	DBName                 string        `mapstructure:"db_name"`
	DatasetsCollection     string        `mapstructure:"datasets_collection"`
	WorkPackagesCollection string        `mapstructure:"work_packages_collection"`

	KafkaServers         []string `mapstructure:"kafka_servers" validate:"required"`
	KafkaGroupID         string   `mapstructure:"kafka_group_id"`
	DatasetChangeTopic   string   `mapstructure:"dataset_change_topic" validate:"required"`
	DatasetUpsertionType string   `mapstructure:"dataset_upsertion_type" validate:"required"`
	DatasetDeletionType  string   `mapstructure:"dataset_deletion_type" validate:"required"`

	AccessURL       string        `mapstructure:"access_url" validate:"required"`
	AccessUploadURL string        `mapstructure:"access_upload_url"`
	AccessTimeout   time.Duration `mapstructure:"access_timeout"`
}

// ApplyDefaults fills in the default values for all optional parameters.
func (c *Config) ApplyDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMode == "" {
		c.LogMode = "json"
	}
	if c.WorkPackageValidDays == 0 {
		c.WorkPackageValidDays = 30
	}
	if len(c.AuthAlgs) == 0 {
		c.AuthAlgs = []string{"ES256"}
	}
	if len(c.AuthCheckClaims) == 0 {
		c.AuthCheckClaims = []string{"id", "name", "email", "iat", "exp"}
	}
	if c.MongoTimeout == 0 {
		c.MongoTimeout = 5 * time.Second
	}
	if c.DBName == "" {
		c.DBName = "work-packages"
	}
	if c.DatasetsCollection == "" {
		c.DatasetsCollection = "datasets"
	}
	if c.WorkPackagesCollection == "" {
		c.WorkPackagesCollection = "workPackages"
	}
	if c.KafkaGroupID == "" {
		c.KafkaGroupID = "wps"
	}
	if c.AccessUploadURL == "" {
		// the production oracle may expose a separate endpoint for uploads
		c.AccessUploadURL = strings.TrimSuffix(c.AccessURL, "/download-access") + "/upload-access"
	}
	if c.AccessTimeout == 0 {
		c.AccessTimeout = 30 * time.Second
	}
}

// Load reads the configuration from the given file, if any, and from the
// environment, applies defaults and validates the result.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("wps")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "config: error reading config file")
		}
	}
	// viper only knows env keys that were bound explicitly or seen in a file
	for _, key := range allKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrap(err, "config: error binding env key")
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "config: error decoding config")
	}
	c.ApplyDefaults()

	if err := validator.New().Struct(c); err != nil {
		return nil, errors.Wrap(err, "config: missing or invalid parameters")
	}
	return c, nil
}

func allKeys() []string {
	return []string{
		"service_instance_id",
		"address",
		"cors_origins",
		"log_level",
		"log_mode",
		"work_package_signing_key",
		"work_package_valid_days",
		"auth_key",
		"auth_algs",
		"auth_check_claims",
		"mongo_dsn",
		"mongo_timeout",
		"db_name",
		"datasets_collection",
		"work_packages_collection",
		"kafka_servers",
		"kafka_group_id",
		"dataset_change_topic",
		"dataset_upsertion_type",
		"dataset_deletion_type",
		"access_url",
		"access_upload_url",
		"access_timeout",
	}
}
