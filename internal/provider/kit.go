package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/kursadbilgin/widget-claims/internal/observability"
	"go.uber.org/zap"
)

const DefaultKitBaseURL = "https://api.convertkit.com/v3"

type KitOptions struct {
	BaseURL     string
	APIKey      string
	FormID      string
	TagID       string
	TokenField  string
	WidgetField string
	// Timeout bounds each call. Zero leaves the request unbounded.
	Timeout time.Duration
}

type kitSubscribeRequest struct {
	APIKey string            `json:"api_key"`
	Email  string            `json:"email"`
	Tags   []string          `json:"tags"`
	Fields map[string]string `json:"fields"`
}

type kitSubscribeResponse struct {
	Subscription struct {
		Subscriber struct {
			ID flexibleID `json:"id"`
		} `json:"subscriber"`
	} `json:"subscription"`
}

// flexibleID accepts the subscriber id as either a JSON number or a string.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}

	raw := string(data)
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return fmt.Errorf("subscriber id is neither string nor number: %s", raw)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = flexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexibleID(raw)
	return nil
}

var _ Gateway = (*KitGateway)(nil)

// KitGateway subscribes claimants to a ConvertKit form. Each call is a single
// attempt.
type KitGateway struct {
	client *resty.Client
	opts   KitOptions
	logger *zap.Logger
}

func NewKitGateway(opts KitOptions, logger *zap.Logger) (*KitGateway, error) {
	client := resty.New()
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal

	return NewKitGatewayWithClient(opts, client, logger)
}

func NewKitGatewayWithClient(opts KitOptions, client *resty.Client, logger *zap.Logger) (*KitGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultKitBaseURL
	}
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid kit base url: %w", err)
	}
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	opts.FormID = strings.TrimSpace(opts.FormID)
	opts.TagID = strings.TrimSpace(opts.TagID)
	if opts.TokenField == "" {
		opts.TokenField = "widget_claim_token"
	}
	if opts.WidgetField == "" {
		opts.WidgetField = "widget_id"
	}

	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	client.SetRetryCount(0)

	return &KitGateway{
		client: client,
		opts:   opts,
		logger: logger,
	}, nil
}

// Configured reports whether calls will reach the provider.
func (g *KitGateway) Configured() bool {
	return g != nil && g.opts.APIKey != "" && g.opts.FormID != ""
}

func (g *KitGateway) Subscribe(ctx context.Context, req SubscribeRequest) (*string, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}

	logger := observability.WithContextLogger(g.logger, ctx)
	if !g.Configured() {
		logger.Warn("kit credentials missing, skipping subscription",
			zap.String("email", observability.MaskEmail(req.Email)),
		)
		return nil, nil
	}

	tags := []string{}
	if g.opts.TagID != "" {
		tags = append(tags, g.opts.TagID)
	}

	body := kitSubscribeRequest{
		APIKey: g.opts.APIKey,
		Email:  req.Email,
		Tags:   tags,
		Fields: map[string]string{
			g.opts.TokenField:  req.Token,
			g.opts.WidgetField: req.WidgetID,
		},
	}

	endpoint := fmt.Sprintf("%s/forms/%s/subscribe", g.opts.BaseURL, url.PathEscape(g.opts.FormID))
	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(endpoint)
	if err != nil {
		logger.Error("kit request failed", zap.Error(err))
		return nil, &GatewayError{Cause: err}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		logger.Error("kit returned an error",
			zap.Int("status_code", statusCode),
			zap.String("body", responseBody),
		)
		return nil, &GatewayError{StatusCode: statusCode, Body: responseBody}
	}

	var parsed kitSubscribeResponse
	if len(response.Body()) > 0 {
		if err := json.Unmarshal(response.Body(), &parsed); err != nil {
			// The subscription went through; only the id is lost.
			logger.Warn("kit response could not be decoded", zap.Error(err))
			return nil, nil
		}
	}

	logger.Info("kit subscription processed",
		zap.String("email", observability.MaskEmail(req.Email)),
	)

	id := string(parsed.Subscription.Subscriber.ID)
	if id == "" {
		return nil, nil
	}
	return &id, nil
}
