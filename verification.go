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
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/pitchroom/dealflow/config"
	"github.com/pitchroom/dealflow/internal/request"
)

// VerificationResult is the platform's answer about a production company.
// A company clears the gate when it is verified and still below its
// concurrent active-deal capacity.
type VerificationResult struct {
	Verified        bool `json:"verified"`
	ActiveDealCount int  `json:"active_deal_count"`
}

// CompanyVerifier answers whether a production company may open a new
// deal. The check runs exactly once per deal, before any exclusivity is
// taken.
type CompanyVerifier interface {
	VerifyCompany(ctx context.Context, companyID string) (*VerificationResult, error)
}

// HTTPVerifier queries the platform's verification service over HTTP.
type HTTPVerifier struct{}

// NewHTTPVerifier returns a verifier backed by the configured
// verification HTTP service.
func NewHTTPVerifier() *HTTPVerifier {
	return &HTTPVerifier{}
}

// VerifyCompany calls the verification service for the given company.
// When no service URL is configured the gate is open; local setups run
// without a verification backend.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - companyID string: The production company to verify.
//
// Returns:
// - *VerificationResult: The verification outcome.
// - error: An error if the service could not be reached.
func (v *HTTPVerifier) VerifyCompany(ctx context.Context, companyID string) (*VerificationResult, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	service := conf.Verification.HttpService
	if service.Url == "" {
		return &VerificationResult{Verified: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(service.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/companies/%s/verification", service.Url, companyID), nil)
	if err != nil {
		return nil, err
	}
	if service.Headers.Authorization != "" {
		req.Header.Set("Authorization", service.Headers.Authorization)
	}

	var result VerificationResult
	resp, err := request.Call(req, &result)
	if err != nil {
		return nil, errors.Wrap(err, "verification service call failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("verification service returned status %d for company %s", resp.StatusCode, companyID)
	}
	return &result, nil
}

// clearedVerification applies the capacity policy to a verification
// result.
func clearedVerification(result *VerificationResult, capacityThreshold int) bool {
	return result.Verified && result.ActiveDealCount < capacityThreshold
}
