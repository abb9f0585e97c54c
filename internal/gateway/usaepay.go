package gateway

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const resultCodeApproved = "A"

// USAePayClient talks to the USA ePay REST v2 API
type USAePayClient struct {
	apiKey     string
	apiPin     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewUSAePayClient creates a gateway client for the given credentials
func NewUSAePayClient(apiKey, apiPin, baseURL string, timeout time.Duration, log *slog.Logger) *USAePayClient {
	return &USAePayClient{
		apiKey:     apiKey,
		apiPin:     apiPin,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// authHeader builds the seed-hashed authorization value the API expects:
// base64(apiKey : s2/{seed}/{sha256(apiKey+seed+apiPin)})
func (c *USAePayClient) authHeader() (string, error) {
	if c.apiKey == "" || c.apiPin == "" {
		return "", fmt.Errorf("gateway credentials are not configured")
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate auth seed: %w", err)
	}
	seed := hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(c.apiKey + seed + c.apiPin))
	apiHash := fmt.Sprintf("s2/%s/%s", seed, hex.EncodeToString(sum[:]))
	encoded := base64.StdEncoding.EncodeToString([]byte(c.apiKey + ":" + apiHash))
	return "Basic " + encoded, nil
}

type transactionResponse struct {
	RefNum     string `json:"refnum"`
	Key        string `json:"key"`
	ResultCode string `json:"result_code"`
	Result     string `json:"result"`
	AuthCode   string `json:"authcode"`
	Error      string `json:"error"`
	SavedCard  struct {
		Key string `json:"key"`
	} `json:"savedcard"`
}

func (c *USAePayClient) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode gateway request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	auth, err := c.authHeader()
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// Tokenize saves a card via the cc:save command and returns the saved
// card key. A processor refusal of the save is returned as an error since
// there is nothing to retry.
func (c *USAePayClient) Tokenize(ctx context.Context, card CardDetails) (string, error) {
	creditcard := map[string]any{
		"number":     card.Number,
		"expiration": card.Expiration,
		"cvc":        card.CVV,
		"cardholder": card.Cardholder,
	}
	if card.Street != "" {
		creditcard["avs_street"] = card.Street
	}
	if card.PostalCode != "" {
		creditcard["avs_postalcode"] = card.PostalCode
	}

	payload := map[string]any{
		"command":    "cc:save",
		"save_card":  true,
		"creditcard": creditcard,
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/transactions", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("card tokenization failed with status %d: %s", status, string(raw))
	}

	var result transactionResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to decode tokenization response: %w", err)
	}
	if result.ResultCode != resultCodeApproved {
		return "", fmt.Errorf("card tokenization declined: %s", result.Result)
	}
	if result.SavedCard.Key == "" {
		return "", fmt.Errorf("tokenization response missing saved card key")
	}

	c.log.Info("Card tokenized", "result_code", result.ResultCode)
	return result.SavedCard.Key, nil
}

// Charge runs a sale command against a saved token. Declines are reported
// through the result status, not as errors.
func (c *USAePayClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	cardholder := ""
	if req.Customer != nil {
		cardholder = strings.TrimSpace(req.Customer.FirstName + " " + req.Customer.LastName)
	}

	payload := map[string]any{
		"command":   "sale",
		"save_card": true,
		"amount":    req.Amount.StringFixed(2),
		"invoice":   req.Invoice,
		"creditcard": map[string]any{
			"number":     req.Token,
			"cardholder": cardholder,
		},
	}
	if req.StoredCredential {
		payload["stored_credential"] = "recurring"
	}
	if cust := req.Customer; cust != nil {
		payload["billing_address"] = map[string]any{
			"firstname":  cust.FirstName,
			"lastname":   cust.LastName,
			"street":     cust.Street,
			"city":       cust.City,
			"state":      cust.State,
			"postalcode": cust.PostalCode,
			"country":    "USA",
			"phone":      cust.Phone,
		}
		payload["customerid"] = cust.CustomerID
		payload["ponum"] = cust.CustomerID
		payload["custid"] = cust.CustomerID
		payload["email"] = cust.Email
		payload["description"] = fmt.Sprintf("Payment for %s", req.Invoice)
		payload["customer"] = map[string]any{
			"first_name": cust.FirstName,
			"last_name":  cust.LastName,
			"email":      cust.Email,
		}
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/transactions", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("charge request failed with status %d: %s", status, string(raw))
	}

	var result transactionResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}
	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)

	out := &ChargeResult{
		Reference:  result.RefNum,
		GatewayKey: result.Key,
		ResultCode: result.ResultCode,
		ResultText: result.Result,
		AuthCode:   result.AuthCode,
		Raw:        rawMap,
	}
	if result.ResultCode == resultCodeApproved {
		out.Status = ChargeApproved
		c.log.Info("Charge approved", "invoice", req.Invoice, "refnum", result.RefNum)
	} else {
		out.Status = ChargeDeclined
		c.log.Warn("Charge declined", "invoice", req.Invoice, "refnum", result.RefNum, "result", result.Result)
	}
	return out, nil
}

// Void cancels a prior transaction by its reference number
func (c *USAePayClient) Void(ctx context.Context, reference string) error {
	status, raw, err := c.do(ctx, http.MethodPost, "/transactions/"+reference+"/void", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("void failed with status %d: %s", status, string(raw))
	}
	c.log.Info("Transaction voided", "refnum", reference)
	return nil
}

// VerifyConnection pings the account endpoint to confirm credentials
func (c *USAePayClient) VerifyConnection(ctx context.Context) error {
	status, raw, err := c.do(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("gateway verification failed with status %d: %s", status, string(raw))
	}
	return nil
}
