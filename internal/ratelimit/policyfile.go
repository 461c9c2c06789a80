package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type policyOverride struct {
	Capacity     int    `yaml:"capacity"`
	RefillTokens int    `yaml:"refill_tokens"`
	RefillPeriod string `yaml:"refill_period"`
}

// LoadPolicyFile applies overrides from a YAML file to the built-in policies.
// The file maps policy names to capacity/refill settings:
//
//	general_api:
//	  capacity: 200
//	  refill_tokens: 200
//	  refill_period: 1m
//
// Unknown policy names are an error; omitted fields keep their defaults.
func LoadPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	var overrides map[string]policyOverride
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}

	known := map[string]*Policy{
		LoginAttempts.Name:     &LoginAttempts,
		Registration.Name:      &Registration,
		FileUploads.Name:       &FileUploads,
		LargeFileUploads.Name:  &LargeFileUploads,
		IncidentCreation.Name:  &IncidentCreation,
		GeneralAPI.Name:        &GeneralAPI,
		VisionAPI.Name:         &VisionAPI,
		AIServiceRequests.Name: &AIServiceRequests,
		AIServiceTokens.Name:   &AIServiceTokens,
		AIUserRequests.Name:    &AIUserRequests,
	}

	for name, o := range overrides {
		p, ok := known[name]
		if !ok {
			return fmt.Errorf("unknown rate-limit policy %q", name)
		}
		if o.Capacity > 0 {
			p.Capacity = o.Capacity
		}
		if o.RefillTokens > 0 {
			p.RefillTokens = o.RefillTokens
		}
		if o.RefillPeriod != "" {
			d, err := time.ParseDuration(o.RefillPeriod)
			if err != nil {
				return fmt.Errorf("policy %q: invalid refill_period: %w", name, err)
			}
			p.RefillPeriod = d
		}
	}

	return nil
}
