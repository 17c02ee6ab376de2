package gateway

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderSettings holds the default settings of a provider and the overlays of its sub-modes.
type ProviderSettings struct {
	Default  Params
	Submodes map[string]Params
}

// Providers resolves gateway keys to provider settings.
type Providers struct {
	table map[string]ProviderSettings
}

// NewProviders builds a resolver over table. Provider names are lower-cased.
func NewProviders(table map[string]ProviderSettings) *Providers {
	p := &Providers{table: make(map[string]ProviderSettings, len(table))}
	for name, s := range table {
		p.table[strings.ToLower(name)] = s
	}
	return p
}

// DefaultProviders returns the built-in settings table. Credentials are all unset.
func DefaultProviders() *Providers {
	return NewProviders(defaultProviderTable())
}

// Get returns the settings for key. Keys of the form "provider_submode" get the sub-mode
// overlay merged over the defaults when the provider declares that sub-mode.
func (p *Providers) Get(key string) (Params, error) {
	key = strings.ToLower(key)

	if s, ok := p.table[key]; ok {
		return s.Default.Clone(), nil
	}

	provider, submode, found := strings.Cut(key, "_")
	if !found {
		return nil, &UnknownProviderError{Key: key}
	}
	s, ok := p.table[provider]
	if !ok {
		return nil, &UnknownProviderError{Key: key}
	}

	settings := s.Default.Clone()
	if overlay, ok := s.Submodes[submode]; ok {
		settings.Merge(overlay)
	}
	return settings, nil
}

// Names lists the configured provider names.
func (p *Providers) Names() []string {
	names := make([]string, 0, len(p.table))
	for name := range p.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type providersFile struct {
	Providers map[string]map[string]Params `yaml:"providers"`
}

// LoadProviders reads operator credentials from a YAML file and merges them over the built-in table:
//
//	providers:
//	  stripe:
//	    default:
//	      apiKey: sk_test_123
//	  paypal:
//	    express:
//	      username: merchant
//
// An empty path returns the defaults. Providers missing from the built-in table are rejected.
func LoadProviders(path string) (*Providers, error) {
	table := defaultProviderTable()
	if path == "" {
		return NewProviders(table), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	for name, sections := range file.Providers {
		name = strings.ToLower(name)
		s, ok := table[name]
		if !ok {
			return nil, &UnknownProviderError{Key: name}
		}
		for section, values := range sections {
			if section == "default" {
				s.Default = s.Default.Clone().Merge(values)
				continue
			}
			if s.Submodes == nil {
				s.Submodes = make(map[string]Params)
			}
			section = strings.ToLower(section)
			s.Submodes[section] = s.Submodes[section].Clone().Merge(values)
		}
		table[name] = s
	}

	return NewProviders(table), nil
}

func defaultProviderTable() map[string]ProviderSettings {
	return map[string]ProviderSettings{
		"authorizenet": {
			Default: Params{
				"apiLoginId":        nil,
				"transactionKey":    nil,
				"liveEndpoint":      "https://secure.authorize.net/gateway/transact.dll",
				"developerEndpoint": "https://test.authorize.net/gateway/transact.dll",
				"developerMode":     true,
				"testMode":          true,
			},
			Submodes: map[string]Params{
				"sim": {"hashSecret": nil},
				"dpm": {"hashSecret": nil},
			},
		},
		"buckaroo": {
			Default: Params{"websiteKey": nil, "secretKey": nil, "testMode": true},
		},
		"cardsave": {
			Default: Params{"merchantId": nil, "password": nil},
		},
		"coinbase": {
			Default: Params{"apiKey": nil, "secret": nil, "accountId": nil},
		},
		"dummy": {
			Default: Params{"testMode": true},
		},
		"eway": {
			Default: Params{"apiKey": nil, "password": nil, "testMode": true},
			Submodes: map[string]Params{
				"direct": {"customerId": nil},
			},
		},
		"firstdata": {
			Default: Params{"testMode": true},
			Submodes: map[string]Params{
				"connect": {"storeId": nil, "sharedSecret": nil},
				"global":  {"gatewayid": nil, "password": nil},
				"payeezy": {"gatewayid": nil, "password": nil},
				"webservice": {
					"sslCertificate": nil,
					"sslKey":         nil,
					"sslKeyPassword": nil,
					"userName":       nil,
					"password":       nil,
				},
			},
		},
		"gocardless": {
			Default: Params{"appId": nil, "appSecret": nil, "merchantId": nil, "accessToken": nil, "testMode": true},
		},
		"migs": {
			Default: Params{"merchantId": nil, "merchantAccessCode": nil, "secureHash": nil},
		},
		"mollie": {
			Default: Params{"apiKey": nil},
		},
		"multisafepay": {
			Default: Params{"testMode": true},
			Submodes: map[string]Params{
				"rest": {"apiKey": nil, "locale": "en"},
				"xml":  {"accountId": nil, "siteId": nil, "siteCode": nil},
			},
		},
		"netaxept": {
			Default: Params{"merchantId": nil, "password": nil, "testMode": true},
		},
		"netbanx": {
			Default: Params{"accountNumber": nil, "storeId": nil, "storePassword": nil, "testMode": true},
		},
		"payfast": {
			Default: Params{"merchantId": nil, "merchantKey": nil, "pdtKey": nil, "testMode": true},
		},
		"payflow": {
			Default: Params{"username": nil, "password": nil, "vendor": nil, "partner": nil, "testMode": true},
		},
		"paymentexpress": {
			Default: Params{"username": nil, "password": nil},
		},
		"paypal": {
			Default: Params{"testMode": true},
			Submodes: map[string]Params{
				"express": {
					"username":       nil,
					"password":       nil,
					"signature":      nil,
					"solutionType":   []any{"Sole", "Mark"},
					"landingPage":    []any{"Billing", "Login"},
					"brandName":      nil,
					"headerImageUrl": nil,
					"logoImageUrl":   nil,
					"borderColor":    nil,
				},
				"pro":  {"username": nil, "password": nil, "signature": nil},
				"rest": {"clientId": nil, "secret": nil, "token": nil},
			},
		},
		"pin": {
			Default: Params{"secretKey": nil, "testMode": true},
		},
		"sagepay": {
			Default: Params{"vendor": nil, "referrerId": nil, "testMode": true},
		},
		"securepay": {
			Default: Params{"merchantId": nil, "transactionPassword": nil, "testMode": true},
		},
		"stripe": {
			Default: Params{"apiKey": nil},
		},
		"targetpay": {
			Default: Params{"subAccountId": nil},
		},
		"twocheckout": {
			Default: Params{"accountNumber": nil, "secretWord": nil, "testMode": true},
		},
		"worldpay": {
			Default: Params{
				"installationId":   nil,
				"accountId":        nil,
				"secretWord":       nil,
				"callbackPassword": nil,
				"testMode":         true,
			},
		},
	}
}
