// internal/executor/portal.go
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	httpclient "loanbot/internal/common/http"
	"loanbot/internal/common/logger"
	"loanbot/internal/models"
)

// PortalClient submits applications to the government portal's HTTP
// surface and maps its answers into the bounded Result contract.
type PortalClient struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client
	logger  logger.Logger
}

func NewPortalClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *PortalClient {
	return &PortalClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  httpclient.NewClient(timeout),
		logger:  log.WithFields(map[string]interface{}{"component": "portal"}),
	}
}

type portalRequest struct {
	FatherNationalCode string `json:"father_national_code"`
	FatherBirthDate    string `json:"father_birth_date"`
	FatherProvince     string `json:"father_province"`
	FatherCity         string `json:"father_city"`
	FatherPhone        string `json:"father_phone"`
	ParentsSeparated   bool   `json:"parents_separated"`
	MotherNationalCode string `json:"mother_national_code,omitempty"`
	MotherBirthDate    string `json:"mother_birth_date,omitempty"`
	MotherPhone        string `json:"mother_phone,omitempty"`
	ChildNationalCode  string `json:"child_national_code"`
	ChildBirthDate     string `json:"child_birth_date"`
	ChildProvince      string `json:"child_province"`
	ChildCity          string `json:"child_city"`
	ChildOrdinal       int    `json:"child_ordinal"`
	BankPreference     string `json:"bank_preference"`
}

type portalResponse struct {
	Status           string `json:"status"`
	TrackingCode     string `json:"tracking_code,omitempty"`
	VerificationCode string `json:"verification_code,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Submit posts the application to the portal. Transport-level failures
// come back as KindUnavailable so the scheduler keeps the record pending
// for the next cycle.
func (p *PortalClient) Submit(ctx context.Context, rec *models.ApplicationRecord) Result {
	payload := portalRequest{
		FatherNationalCode: rec.FatherNationalCode,
		FatherBirthDate:    rec.FatherBirthDate,
		FatherProvince:     rec.FatherProvince,
		FatherCity:         rec.FatherCity,
		FatherPhone:        rec.FatherPhone,
		ParentsSeparated:   rec.ParentsSeparated,
		MotherNationalCode: rec.MotherNationalCode,
		MotherBirthDate:    rec.MotherBirthDate,
		MotherPhone:        rec.MotherPhone,
		ChildNationalCode:  rec.ChildNationalCode,
		ChildBirthDate:     rec.ChildBirthDate,
		ChildProvince:      rec.ChildProvince,
		ChildCity:          rec.ChildCity,
		ChildOrdinal:       rec.ChildOrdinal,
		BankPreference:     rec.BankPreference,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Kind: KindPermanentError, Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/api/v1/applications", bytes.NewReader(body))
	if err != nil {
		return Result{Kind: KindPermanentError, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		p.logger.Warn("portal unreachable", map[string]interface{}{"error": err})
		return Result{Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Kind: KindTransientError, Message: fmt.Sprintf("read response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return p.mapBody(raw)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Result{Kind: KindTransientError, Message: fmt.Sprintf("portal status %d: %s", resp.StatusCode, truncate(raw))}
	default:
		// 4xx: the portal rejected the data itself, retrying cannot help.
		return Result{Kind: KindPermanentError, Message: fmt.Sprintf("portal status %d: %s", resp.StatusCode, truncate(raw))}
	}
}

func (p *PortalClient) mapBody(raw []byte) Result {
	var pr portalResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return Result{Kind: KindTransientError, Message: fmt.Sprintf("decode response: %v", err)}
	}

	switch pr.Status {
	case "registered", "ok":
		return Result{Kind: KindSuccess, TrackingRef: pr.TrackingCode, Message: pr.Message}
	case "verification_required":
		return Result{Kind: KindNeedsVerification, VerificationCode: pr.VerificationCode, Message: pr.Message}
	case "rejected":
		return Result{Kind: KindPermanentError, Message: pr.Message}
	default:
		return Result{Kind: KindTransientError, Message: fmt.Sprintf("unexpected portal status %q: %s", pr.Status, pr.Message)}
	}
}

func truncate(raw []byte) string {
	const max = 256
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
