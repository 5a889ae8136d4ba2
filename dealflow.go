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

package dealflow

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pitchroom/dealflow/config"
	"github.com/pitchroom/dealflow/database"
	"github.com/pitchroom/dealflow/documents"
	"github.com/pitchroom/dealflow/internal/notification"
	redis_db "github.com/pitchroom/dealflow/internal/redis-db"
)

// Dealflow represents the main struct for the deal negotiation engine.
// It owns the orchestration of every production deal from interest
// expression through activation or a terminal outcome.
type Dealflow struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	documents  documents.Store
	verifier   CompanyVerifier
}

// NewDealflow initializes a new instance of Dealflow with the provided database datasource.
// It fetches the configuration and initializes the Redis client, task queue,
// document store and company verifier.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
//
// Returns:
// - *Dealflow: A pointer to the newly created Dealflow instance.
// - error: An error if any of the initialization steps fail.
func NewDealflow(db database.IDataSource) (*Dealflow, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	var store documents.Store
	if configuration.Documents.Bucket != "" {
		store, err = documents.NewS3Store(&configuration.Documents)
		if err != nil {
			return nil, err
		}
	}

	newQueue := NewQueue(configuration)
	newDealflow := &Dealflow{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		documents:  store,
		verifier:   NewHTTPVerifier(),
	}

	// System errors raised anywhere in the engine also fan out to the
	// configured webhook endpoint.
	notification.RegisterWebhookSender(func(event string, payload interface{}) error {
		return SendWebhook(NewWebhook{Event: event, Payload: payload})
	})
	return newDealflow, nil
}
