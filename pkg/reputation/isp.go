package reputation

import "strings"

// Known mailbox-provider buckets.
const (
	ProviderGmail   = "gmail"
	ProviderOutlook = "outlook"
	ProviderYahoo   = "yahoo"
	ProviderOther   = "other"
)

// providerDomains maps recipient mail-domain suffixes to their provider
// bucket. Consumer domains only; corporate domains on hosted Gmail or
// Microsoft 365 land in "other" because their filtering behaves
// differently from the consumer stack.
var providerDomains = map[string]string{
	"gmail.com":        ProviderGmail,
	"googlemail.com":   ProviderGmail,
	"googlemail.co.uk": ProviderGmail,
	"outlook.com":      ProviderOutlook,
	"outlook.com.br":   ProviderOutlook,
	"hotmail.com":      ProviderOutlook,
	"hotmail.co.uk":    ProviderOutlook,
	"hotmail.com.br":   ProviderOutlook,
	"live.com":         ProviderOutlook,
	"msn.com":          ProviderOutlook,
	"yahoo.com":        ProviderYahoo,
	"yahoo.co.uk":      ProviderYahoo,
	"yahoo.com.br":     ProviderYahoo,
	"ymail.com":        ProviderYahoo,
	"rocketmail.com":   ProviderYahoo,
}

// ProviderFor buckets a recipient address or bare mail domain into one of
// the known providers, falling back to "other".
func ProviderFor(recipient string) string {
	domain := recipient
	if at := strings.LastIndex(recipient, "@"); at >= 0 {
		domain = recipient[at+1:]
	}

	domain = strings.ToLower(strings.TrimSpace(domain))

	if provider, ok := providerDomains[domain]; ok {
		return provider
	}

	return ProviderOther
}
