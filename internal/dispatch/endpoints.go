package dispatch

import "time"

// Endpoints lists where submissions go. Empty URLs are skipped.
type Endpoints struct {
	WebhookURL     string
	WebhookTimeout time.Duration

	RelayURL     string
	RelayTimeout time.Duration

	ConversionEndpoint string
	ConversionToken    string
	ConversionEvent    string
	ConversionTimeout  time.Duration
}

// Destinations builds the destinations in dispatch order: webhook, relay,
// then the conversion API when both its endpoint and token are set.
func (e Endpoints) Destinations() []Destination {
	var dests []Destination
	if e.WebhookURL != "" {
		dests = append(dests, NewWebhook(e.WebhookURL, NewHTTPClient(e.WebhookTimeout)))
	}
	if e.RelayURL != "" {
		dests = append(dests, NewRelay(e.RelayURL, NewHTTPClient(e.RelayTimeout)))
	}
	if e.ConversionEndpoint != "" && e.ConversionToken != "" {
		dests = append(dests, NewConversionAPI(
			e.ConversionEndpoint, e.ConversionToken, e.ConversionEvent,
			NewHTTPClient(e.ConversionTimeout)))
	}
	return dests
}
