package provider

import "context"

// Gateway is the outbound port to the email-marketing provider.
type Gateway interface {
	// Subscribe registers the email and attaches the claim token and widget id
	// as custom fields. A nil subscriber id with a nil error means the
	// provider did not return one or the gateway is not configured.
	Subscribe(ctx context.Context, req SubscribeRequest) (*string, error)
}

type SubscribeRequest struct {
	Email    string
	Token    string
	WidgetID string
}
