// Package config holds the immutable input record the engine is constructed
// from. Loading values from the environment or a dotenv file is the
// responsibility of an external collaborator; this package only defines the
// shape and validates it.
package config

import (
	"fmt"
	"time"

	rudderconfig "github.com/rudderlabs/rudder-go-kit/config"
)

// Preset names a bundle of extractor kinds. The zero value means "use Kinds
// verbatim".
type Preset string

const (
	PresetQuick     Preset = "quick"
	PresetFull      Preset = "full"
	PresetContent   Preset = "content"
	PresetJourney   Preset = "journey"
	PresetAutomation Preset = "automation"
	PresetMessaging Preset = "messaging"
)

// Config is the single input record the engine is constructed from. It is
// immutable once built: every field is read, never mutated, by downstream
// components.
type Config struct {
	// Endpoints.
	RESTBase string
	SOAPBase string
	AuthBase string

	// Credentials.
	ClientID     string
	ClientSecret string
	AccountID    string

	// Output.
	OutputRoot string

	// Extractor selection.
	Kinds  []string
	Preset Preset

	// Behavior knobs.
	IncludeDetails bool
	IncludeContent bool
	MaxConcurrency int
	PageSize       int

	// Timeouts, exposed here because the core spec treats them as
	// configuration, not hardcoded constants.
	RequestTimeout    time.Duration
	ExtractorTimeout  time.Duration
}

// WithDefaults returns a copy of c with zero-valued knobs replaced by the
// defaults named in the component design.
func (c Config) WithDefaults() Config {
	out := c
	if out.MaxConcurrency == 0 {
		out.MaxConcurrency = rudderconfig.GetIntVar(4, 1, "SfmcInventory.maxConcurrency")
	}
	if out.PageSize == 0 {
		out.PageSize = rudderconfig.GetIntVar(50, 1, "SfmcInventory.pageSize")
	}
	if out.RequestTimeout == 0 {
		out.RequestTimeout = rudderconfig.GetDurationVar(60, time.Second, "SfmcInventory.requestTimeout")
	}
	if out.ExtractorTimeout == 0 {
		out.ExtractorTimeout = rudderconfig.GetDurationVar(30, time.Minute, "SfmcInventory.extractorTimeout")
	}
	return out
}

// Validate checks the fields a batch run cannot proceed without. It does not
// reach into the environment or the filesystem.
func (c Config) Validate() error {
	var missing []string
	if c.RESTBase == "" {
		missing = append(missing, "RESTBase")
	}
	if c.SOAPBase == "" {
		missing = append(missing, "SOAPBase")
	}
	if c.AuthBase == "" {
		missing = append(missing, "AuthBase")
	}
	if c.ClientID == "" {
		missing = append(missing, "ClientID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "ClientSecret")
	}
	if c.AccountID == "" {
		missing = append(missing, "AccountID")
	}
	if c.OutputRoot == "" {
		missing = append(missing, "OutputRoot")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required fields: %v", missing)
	}
	return nil
}

// PresetKinds maps a preset name to its member extractor kinds. Kinds are
// named as plain strings (not an enum) so that the extractor registry, which
// owns the actual set of known kinds, remains the single source of truth.
func PresetKinds(p Preset) []string {
	switch p {
	case PresetQuick:
		return []string{"automation", "data_extension", "query"}
	case PresetFull:
		return []string{
			"automation", "data_extension", "query", "script", "import",
			"data_extract", "file_transfer", "filter", "journey",
			"triggered_send", "event_definition", "email", "list", "asset",
			"folder", "sender_profile", "delivery_profile", "send_classification",
		}
	case PresetContent:
		return []string{"email", "asset", "folder"}
	case PresetJourney:
		return []string{"journey", "event_definition", "email", "data_extension"}
	case PresetAutomation:
		return []string{"automation", "query", "script", "import", "data_extract", "file_transfer", "filter"}
	case PresetMessaging:
		return []string{"email", "list", "triggered_send", "sender_profile", "delivery_profile", "send_classification"}
	default:
		return nil
	}
}
