package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Template names understood by the mail relay.
const (
	TemplateVisitorInvitation = "visitorInvitation"
	TemplateVisitApproved     = "visitApproved"
	TemplateVisitorArrived    = "visitorArrived"
)

// SendRequest is the payload posted to the mail relay.
type SendRequest struct {
	To       string                 `json:"to"`
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data"`
}

type sendResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client posts templated email jobs to the outbound mail relay. Delivery is
// the relay's problem; callers treat a non-2xx response as a logged failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientFromEnv reads MAIL_API_URL.
func NewClientFromEnv() *Client {
	return NewClient(os.Getenv("MAIL_API_URL"))
}

// Send posts one email job to the relay.
func (c *Client) Send(req SendRequest) error {
	if c.baseURL == "" {
		return fmt.Errorf("MAIL_API_URL is not set")
	}
	if strings.TrimSpace(req.To) == "" {
		return fmt.Errorf("recipient is empty")
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/mail/send", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	// Accept ANY 2xx status (200, 201, etc.)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var sResp sendResponse
	if err := json.Unmarshal(body, &sResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if sResp.Status != "" && strings.ToLower(sResp.Status) != "success" {
		return fmt.Errorf("mail relay rejected job: %s", sResp.Message)
	}

	return nil
}
