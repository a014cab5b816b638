package mollie

// Amount is the decimal-string money shape the gateway speaks.
type Amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

// CreatePaymentParams captures everything needed to open a hosted checkout.
type CreatePaymentParams struct {
	Amount      Amount            `json:"amount"`
	Description string            `json:"description"`
	RedirectURL string            `json:"redirectUrl"`
	WebhookURL  string            `json:"webhookUrl,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Payment is the gateway's payment resource. Status and Amount are
// authoritative; callers must never trust webhook payloads over a re-fetch.
type Payment struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   Amount            `json:"amount"`
	Metadata map[string]string `json:"metadata"`
	Links    PaymentLinks      `json:"_links"`
}

// PaymentLinks carries the HAL links returned with a payment.
type PaymentLinks struct {
	Checkout *Link `json:"checkout,omitempty"`
}

// Link is a single HAL href.
type Link struct {
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// CheckoutURL returns the hosted checkout link, if present.
func (p *Payment) CheckoutURL() string {
	if p == nil || p.Links.Checkout == nil {
		return ""
	}
	return p.Links.Checkout.Href
}

type apiError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}
