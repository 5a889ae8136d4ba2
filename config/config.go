/*
Copyright 2024 Pitchroom Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"DEALFLOW_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"DEALFLOW_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"DEALFLOW_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"DEALFLOW_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"DEALFLOW_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"DEALFLOW_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	DeadlineQueue    string `json:"deadline_queue" envconfig:"DEALFLOW_QUEUE_DEADLINE"`
	WaitlistQueue    string `json:"waitlist_queue" envconfig:"DEALFLOW_QUEUE_WAITLIST"`
	WebhookQueue     string `json:"webhook_queue" envconfig:"DEALFLOW_QUEUE_WEBHOOK"`
	MonitoringPort   string `json:"monitoring_port" envconfig:"DEALFLOW_QUEUE_MONITORING_PORT"`
	MaxRetryAttempts int    `json:"max_retry_attempts" envconfig:"DEALFLOW_QUEUE_MAX_RETRY_ATTEMPTS"`
}

// NegotiationConfig bounds every suspend point of the saga. All values
// are in days; a zero value falls back to the documented default so a
// partially filled config file cannot produce an unbounded wait.
type NegotiationConfig struct {
	CreatorResponseDays  int `json:"creator_response_days" envconfig:"DEALFLOW_NEGOTIATION_CREATOR_RESPONSE_DAYS"`
	MeetingOutcomeDays   int `json:"meeting_outcome_days" envconfig:"DEALFLOW_NEGOTIATION_MEETING_OUTCOME_DAYS"`
	ProposalDays         int `json:"proposal_days" envconfig:"DEALFLOW_NEGOTIATION_PROPOSAL_DAYS"`
	ReviewDays           int `json:"review_days" envconfig:"DEALFLOW_NEGOTIATION_REVIEW_DAYS"`
	CounterResponseDays  int `json:"counter_response_days" envconfig:"DEALFLOW_NEGOTIATION_COUNTER_RESPONSE_DAYS"`
	ContractSigningDays  int `json:"contract_signing_days" envconfig:"DEALFLOW_NEGOTIATION_CONTRACT_SIGNING_DAYS"`
	ProductionDays       int `json:"production_days" envconfig:"DEALFLOW_NEGOTIATION_PRODUCTION_DAYS"`
	WaitlistDays         int `json:"waitlist_days" envconfig:"DEALFLOW_NEGOTIATION_WAITLIST_DAYS"`
	ExclusivityHoldDays  int `json:"exclusivity_hold_days" envconfig:"DEALFLOW_NEGOTIATION_EXCLUSIVITY_HOLD_DAYS"`
}

type VerificationHttpService struct {
	Url     string `json:"url"`
	Timeout int    `json:"timeout"`
	Headers struct {
		Authorization string `json:"Authorization"`
	} `json:"headers"`
}

type VerificationConfig struct {
	CapacityThreshold int                     `json:"capacity_threshold" envconfig:"DEALFLOW_VERIFICATION_CAPACITY_THRESHOLD"`
	HttpService       VerificationHttpService `json:"http_service"`
}

type DocumentStoreConfig struct {
	Bucket             string `json:"bucket" envconfig:"DEALFLOW_DOCUMENTS_BUCKET"`
	Region             string `json:"region" envconfig:"DEALFLOW_DOCUMENTS_REGION"`
	Endpoint           string `json:"endpoint" envconfig:"DEALFLOW_DOCUMENTS_ENDPOINT"`
	AwsAccessKeyId     string `json:"aws_access_key_id"`
	AwsSecretAccessKey string `json:"aws_secret_access_key"`
}

// RateLimitConfig bounds API request rates. Nil values disable rate
// limiting entirely.
type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"DEALFLOW_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"DEALFLOW_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"DEALFLOW_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string              `json:"project_name" envconfig:"DEALFLOW_PROJECT_NAME"`
	Server       ServerConfig        `json:"server"`
	DataSource   DataSourceConfig    `json:"data_source"`
	Redis        RedisConfig         `json:"redis"`
	Queue        QueueConfig         `json:"queue"`
	Negotiation  NegotiationConfig   `json:"negotiation"`
	Verification VerificationConfig  `json:"verification"`
	Documents    DocumentStoreConfig `json:"documents"`
	RateLimit    RateLimitConfig     `json:"rate_limit"`
	Notification Notification        `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("dealflow", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called dealflow.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Dealflow Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.Queue.applyDefaults()
	cnf.Negotiation.applyDefaults()

	if cnf.Verification.CapacityThreshold == 0 {
		cnf.Verification.CapacityThreshold = 5
	}
	if cnf.Verification.HttpService.Timeout == 0 {
		cnf.Verification.HttpService.Timeout = 15
	}

	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 180
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (q *QueueConfig) applyDefaults() {
	if q.DeadlineQueue == "" {
		q.DeadlineQueue = "deal:deadline"
	}
	if q.WaitlistQueue == "" {
		q.WaitlistQueue = "deal:waitlist"
	}
	if q.WebhookQueue == "" {
		q.WebhookQueue = "deal:webhook"
	}
	if q.MonitoringPort == "" {
		q.MonitoringPort = "5004"
	}
	if q.MaxRetryAttempts == 0 {
		q.MaxRetryAttempts = 5
	}
}

func (n *NegotiationConfig) applyDefaults() {
	if n.CreatorResponseDays == 0 {
		n.CreatorResponseDays = 5
	}
	if n.MeetingOutcomeDays == 0 {
		n.MeetingOutcomeDays = 7
	}
	if n.ProposalDays == 0 {
		n.ProposalDays = 14
	}
	if n.ReviewDays == 0 {
		n.ReviewDays = 14
	}
	if n.CounterResponseDays == 0 {
		n.CounterResponseDays = 3
	}
	if n.ContractSigningDays == 0 {
		n.ContractSigningDays = 30
	}
	if n.ProductionDays == 0 {
		n.ProductionDays = 365
	}
	if n.WaitlistDays == 0 {
		n.WaitlistDays = 30
	}
	if n.ExclusivityHoldDays == 0 {
		n.ExclusivityHoldDays = 30
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.Queue.applyDefaults()
	mockConfig.Negotiation.applyDefaults()
	if mockConfig.Verification.CapacityThreshold == 0 {
		mockConfig.Verification.CapacityThreshold = 5
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
